package docdb

// IDatabase is the document API of one named database.
// It is implemented by *Database (local) and by the RPC client (remote).
type IDatabase interface {
	// Name returns the database name, which is also its key in the backing store.
	Name() string

	// DeclareCollections creates the named collections. names must be a string or a list of strings.
	// Existing collections are left untouched unless replace is set, in which case they are emptied.
	DeclareCollections(names any, replace bool) (err error)

	// Count returns the number of documents in the collection.
	Count(collection string) (n int, err error)

	// Find returns the documents matching opts.Where, sorted and paginated as requested.
	Find(collection string, opts FindOptions) (docs []Document, err error)

	// FindOne returns the first document matching where. An empty where never matches.
	FindOne(collection string, where Where) (doc Document, found bool, err error)

	// Insert stores doc under a fresh _id and returns the stored document.
	Insert(collection string, doc Document) (stored Document, err error)

	// InsertMany inserts docs in order and returns the stored documents in input order.
	InsertMany(collection string, docs []Document) (stored []Document, err error)

	// Update shallow merges patch into the first document matching m and returns its state before the merge.
	Update(collection string, m Match, patch Document) (before Document, found bool, err error)

	// Remove drops every document matching where and returns the surviving documents.
	Remove(collection string, where Where) (survivors []Document, err error)

	// All returns every document of the collection.
	All(collection string) (docs []Document, err error)

	// Snapshot returns every collection of the database.
	Snapshot() (collections map[string][]Document, err error)
}
