// Package client implements RPC clients for the lsdb server. They satisfy the same interfaces
// as the local implementations, so callers can switch between embedded and remote use:
//
//   - NewRPCStore: store.IStore on a kv shard
//   - NewRPCLockMgr: lockmgr.ILockManager on a lockmgr shard
//   - NewRPCDatabase: docdb.IDatabase on a docdb shard
//
// Document errors keep their type across the wire: errors.As with a *docdb.ValidationError
// and friends work on errors returned by the database client. Filters are validated on the
// client before a request is sent.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		TimeoutSecond: 5,
//		Transport: common.ClientTransportConfig{
//			Endpoints:  []string{"localhost:8080"},
//			RetryCount: 3,
//		},
//	}
//
//	shop, err := client.NewRPCDatabase(300, "shop", config, http.NewHttpClientTransport(), serializer.NewJSONSerializer())
//	if err != nil { ... }
//
//	_ = shop.DeclareCollections("articles", false)
//	drinks, err := shop.Find("articles", docdb.FindOptions{Where: docdb.Where{docdb.Eq("category", "Drinks")}})
//
// All clients are safe for concurrent use.
package client
