package index

// Descriptor carries the settings and mappings body used to create an
// index.
type Descriptor struct {
	Body string
}

// Migrations returns the descriptor for the migration state index: one
// document per migration identity, with exact-match identity and type
// fields, integer version, attempt timestamps and a free-text error
// message.
func Migrations() Descriptor {
	return Descriptor{Body: `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 1
  },
  "mappings": {
    "properties": {
      "id": { "type": "keyword" },
      "version": { "type": "integer" },
      "migrationType": { "type": "keyword" },
      "startedUtc": { "type": "date" },
      "completedUtc": { "type": "date" },
      "errorMessage": { "type": "text" }
    }
  }
}`}
}
