// Package testing provides the conformance test suite for engines that satisfy the db.KVDB interface.
//
// Example usage:
//
//	factory := func() db.KVDB {
//		return NewMyEngine()
//	}
//
//	dbtesting.RunKVDBTests(t, "MyEngine", factory)
package testing
