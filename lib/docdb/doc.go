// Package docdb implements lsdb's document database: named collections of JSON documents
// kept in one snapshot per database inside a store.IStore.
//
// Opening a database loads its snapshot once. Reads are served from memory, every mutation
// writes the complete snapshot back before returning:
//
//	kv := lstore.NewLocalStore(func() db.KVDB { return memdb.NewMemDB(nil) })
//	handle, err := docdb.Open(kv, "shop")
//	if err != nil { ... }
//
//	_ = handle.DeclareCollections([]string{"articles"}, false)
//	_, _ = handle.Insert("articles", docdb.Document{"title": "Coffee Guide", "category": "Drinks"})
//
//	drinks, err := handle.Find("articles", docdb.FindOptions{
//		Where: docdb.Where{docdb.Eq("category", "Drinks")},
//		Sort:  &docdb.Sort{Field: "title", Order: docdb.Asc},
//		Limit: 10,
//	})
//
// # Filters
//
// A Where is an ordered list of conditions that all have to hold. The operators are
// $eq, $ne, $gt, $gte, $lt, $lte, $in and $nin:
//
//   - Numbers compare numerically, strings lexicographically. Ordering operators never match
//     values of different kinds.
//   - A missing field fails $eq, $in and every ordering operator, and satisfies $ne and $nin.
//   - $in matches if the field, or any element when the field is a list, contains one of the
//     candidates as a substring of its string form. StrictIn (or "$strict": true in JSON) uses
//     equality instead. $nin is the negation of $in.
//
// ParseWhere reads the JSON form {"field": {"$op": value}} keeping the field order.
//
// # Errors
//
// Operations return *ValidationError for malformed input, *UnsupportedOperatorError for unknown
// operators and *UnknownCollectionError for collections that were never declared. A query that
// matches nothing is not an error.
package docdb
