package conn_test

import (
	"net/http"
	"testing"

	. "github.com/kivadb/kivadb/internal/conn"
	"github.com/kivadb/kivadb/internal/db"
	"github.com/kivadb/kivadb/internal/table"
	"github.com/kivadb/kivadb/internal/types"
	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

func send(t *testing.T, database *db.DB, action RequestAction, body string) Response {
	t.Helper()
	return Dispatch(database, action, []byte(body))
}

func seededDB(t *testing.T) *db.DB {
	t.Helper()
	database := db.New(nil)
	res := send(t, database, RequestActionCreateTable, `{
		"table": "users",
		"schema": {"id": "int", "name": "string", "age": "int"}
	}`)
	assert.Equal(t, res.Status, http.StatusCreated)

	res = send(t, database, RequestActionInsert, `{
		"table": "users",
		"records": [
			{"id": 1, "name": "Alice", "age": 30},
			{"id": 2, "name": "Bob", "age": 25},
			{"id": 3, "name": "Carol", "age": 30}
		]
	}`)
	assert.Equal(t, res.Status, http.StatusCreated)
	return database
}

func TestCreateTable(t *testing.T) {
	t.Run("default primary key", func(t *testing.T) {
		database := db.New(nil)
		res := send(t, database, RequestActionCreateTable, `{"table": "things"}`)
		assert.Equal(t, res.Status, http.StatusCreated)

		things, err := database.GetTable("things")
		assert.NilError(t, err)
		assert.Equal(t, things.PrimaryKeyName(), "id")
	})

	t.Run("duplicate table conflicts", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionCreateTable, `{"table": "users"}`)
		assert.Equal(t, res.Status, http.StatusConflict)
	})

	t.Run("bad schema kind", func(t *testing.T) {
		database := db.New(nil)
		res := send(t, database, RequestActionCreateTable, `{
			"table": "t", "schema": {"x": "decimal"}
		}`)
		assert.Equal(t, res.Status, http.StatusBadRequest)
	})
}

func TestTableLifecycle(t *testing.T) {
	database := seededDB(t)

	res := send(t, database, RequestActionListTables, `{}`)
	assert.Equal(t, res.Status, http.StatusOK)
	assert.DeepEqual(t, res.Data, []string{"users"})

	res = send(t, database, RequestActionDropTable, `{"table": "users"}`)
	assert.Equal(t, res.Status, http.StatusOK)

	res = send(t, database, RequestActionDropTable, `{"table": "users"}`)
	assert.Equal(t, res.Status, http.StatusNotFound)
}

func TestInsert(t *testing.T) {
	t.Run("json numbers land as schema ints", func(t *testing.T) {
		database := seededDB(t)
		users, err := database.GetTable("users")
		assert.NilError(t, err)

		recs := users.Select(table.SelectOptions{Where: users.Field("age").Eq(30)})
		assert.Assert(t, is.Len(recs, 2))
		assert.Equal(t, recs[0].Get("age"), 30)
		assert.Equal(t, recs[0].Get("id"), 1)
	})

	t.Run("duplicate key conflicts", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionInsert, `{
			"table": "users", "record": {"id": 1, "name": "Evil", "age": 1}
		}`)
		assert.Equal(t, res.Status, http.StatusConflict)
	})

	t.Run("schema violation is a bad request", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionInsert, `{
			"table": "users", "record": {"id": 9, "name": "Dave", "age": "old"}
		}`)
		assert.Equal(t, res.Status, http.StatusBadRequest)
	})

	t.Run("unknown table", func(t *testing.T) {
		database := db.New(nil)
		res := send(t, database, RequestActionInsert, `{"table": "ghosts", "record": {}}`)
		assert.Equal(t, res.Status, http.StatusNotFound)
	})
}

func TestSelect(t *testing.T) {
	t.Run("equality where", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"age": 30}
		}`)
		assert.Equal(t, res.Status, http.StatusOK)
		recs := res.Data.([]types.Record)
		assert.Assert(t, is.Len(recs, 2))
		assert.Equal(t, recs[0].Get("name"), "Alice")
	})

	t.Run("operator map with order and limit", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionSelect, `{
			"table": "users",
			"where": {"age": {"gte": 25, "lt": 31}},
			"order_by": ["-name"],
			"limit": 2
		}`)
		recs := res.Data.([]types.Record)
		assert.Assert(t, is.Len(recs, 2))
		assert.Equal(t, recs[0].Get("name"), "Carol")
		assert.Equal(t, recs[1].Get("name"), "Bob")
	})

	t.Run("or and not documents", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionSelect, `{
			"table": "users",
			"where": {"or": [{"name": "Alice"}, {"age": {"lt": 26}}]}
		}`)
		assert.Assert(t, is.Len(res.Data.([]types.Record), 2))

		res = send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"not": {"age": 30}}
		}`)
		recs := res.Data.([]types.Record)
		assert.Assert(t, is.Len(recs, 1))
		assert.Equal(t, recs[0].Get("name"), "Bob")
	})

	t.Run("string operators", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionSelect, `{
			"table": "users",
			"where": {"name": {"startsWith": "A", "contains": "lic", "endsWith": "e"}}
		}`)
		recs := res.Data.([]types.Record)
		assert.Assert(t, is.Len(recs, 1))
		assert.Equal(t, recs[0].Get("name"), "Alice")
	})

	t.Run("null tests", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"age": {"notNull": true}}
		}`)
		assert.Assert(t, is.Len(res.Data.([]types.Record), 3))

		res = send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"age": {"isNull": true}}
		}`)
		assert.Assert(t, is.Len(res.Data.([]types.Record), 0))

		// the two forms are complements of each other
		res = send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"age": {"notNull": false}}
		}`)
		assert.Assert(t, is.Len(res.Data.([]types.Record), 0))
	})

	t.Run("in and between", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"id": {"in": [1, 3]}}
		}`)
		assert.Assert(t, is.Len(res.Data.([]types.Record), 2))

		res = send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"age": {"between": [25, 29]}}
		}`)
		recs := res.Data.([]types.Record)
		assert.Assert(t, is.Len(recs, 1))
		assert.Equal(t, recs[0].Get("name"), "Bob")
	})

	t.Run("column projection", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"id": 1}, "columns": ["name"]
		}`)
		recs := res.Data.([]types.Record)
		assert.Equal(t, len(recs[0]), 1)
		assert.Equal(t, recs[0].Get("name"), "Alice")

		res = send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"id": 1}, "columns": {"who": "name"}
		}`)
		recs = res.Data.([]types.Record)
		assert.Equal(t, recs[0].Get("who"), "Alice")
	})

	t.Run("bad where operator", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"age": {"near": 30}}
		}`)
		assert.Equal(t, res.Status, http.StatusBadRequest)
		assert.Assert(t, is.Contains(res.Message, "unknown where operator"))
	})
}

func TestUpdate(t *testing.T) {
	database := seededDB(t)

	res := send(t, database, RequestActionUpdate, `{
		"table": "users", "changes": {"age": 99}, "where": {"age": 30}
	}`)
	assert.Equal(t, res.Status, http.StatusOK)
	assert.Equal(t, res.Data, 2)

	res = send(t, database, RequestActionUpdate, `{
		"table": "users", "changes": {"age": 1}, "where": {"name": "Nobody"}
	}`)
	assert.Equal(t, res.Status, http.StatusNotFound)
}

func TestDelete(t *testing.T) {
	database := seededDB(t)

	res := send(t, database, RequestActionDelete, `{
		"table": "users", "where": {"age": 30}
	}`)
	assert.Equal(t, res.Status, http.StatusOK)
	assert.Equal(t, res.Data, 2)

	res = send(t, database, RequestActionDelete, `{
		"table": "users", "where": {"age": 30}
	}`)
	assert.Equal(t, res.Status, http.StatusNotFound)
}

func TestCreateIndex(t *testing.T) {
	t.Run("default kind is hash", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionCreateIndex, `{
			"table": "users", "field": "age"
		}`)
		assert.Equal(t, res.Status, http.StatusCreated)

		users, err := database.GetTable("users")
		assert.NilError(t, err)
		assert.Assert(t, users.HasIndex("age"))

		// indexed lookups still answer correctly over the wire
		sel := send(t, database, RequestActionSelect, `{
			"table": "users", "where": {"age": 30}
		}`)
		assert.Assert(t, is.Len(sel.Data.([]types.Record), 2))
	})

	t.Run("unknown kind fails", func(t *testing.T) {
		database := seededDB(t)
		res := send(t, database, RequestActionCreateIndex, `{
			"table": "users", "field": "age", "kind": "bitmap"
		}`)
		assert.Equal(t, res.Status, http.StatusBadRequest)
	})
}

func TestDispatchUnknownAction(t *testing.T) {
	res := Dispatch(db.New(nil), RequestAction("explode"), []byte(`{}`))
	assert.Equal(t, res.Status, http.StatusBadRequest)
	assert.Assert(t, is.Contains(res.Message, `Unknown action "explode"`))
}

func TestHandleMessage(t *testing.T) {
	t.Run("malformed frame is a parse error", func(t *testing.T) {
		res, _ := HandleMessage(db.New(nil), []byte(`{not json`))
		assert.Equal(t, res.Status, http.StatusBadRequest)
		assert.Assert(t, is.Contains(res.Message, "Invalid request"))
	})

	t.Run("request id is echoed back", func(t *testing.T) {
		database := seededDB(t)
		res, action := HandleMessage(database, []byte(`{
			"action": "listTables", "__kdb_client_req_id__": 42
		}`))
		assert.Equal(t, res.Status, http.StatusOK)
		assert.Equal(t, res.ReqId, 42)
		assert.Equal(t, action, RequestActionListTables)
	})
}
