package internal

// QueryType selects the read a Query performs on the state machine
type QueryType uint8

const (
	QueryTGet QueryType = iota
	QueryTHas
	QueryTKeys
	QueryTGetDBInfo
)

var queryNames = [...]string{
	QueryTGet:       "Get",
	QueryTHas:       "Has",
	QueryTKeys:      "Keys",
	QueryTGetDBInfo: "GetDBInfo",
}

func (q QueryType) String() string {
	if int(q) < len(queryNames) {
		return queryNames[q]
	}
	return "Unknown"
}

// Query is a read-only lookup, passed to SyncRead or StaleRead. Key is empty for Keys and GetDBInfo.
//
// Lookup answers with
//   - QueryTGet: QueryResult
//   - QueryTHas: bool
//   - QueryTKeys: []string
//   - QueryTGetDBInfo: db.DatabaseInfo
type Query struct {
	Type QueryType
	Key  string
}

// QueryResult carries the value of a QueryTGet, Ok is false for a missing key
type QueryResult struct {
	Ok    bool
	Value []byte
}
