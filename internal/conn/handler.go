package conn

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/kivadb/kivadb/internal/db"
	"github.com/kivadb/kivadb/internal/index"
	"github.com/kivadb/kivadb/internal/query"
	"github.com/kivadb/kivadb/internal/schema"
	"github.com/kivadb/kivadb/internal/table"
	"github.com/kivadb/kivadb/internal/types"
)

type Response struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	// don't manually set this. it comes from the client
	ReqId int `json:"__kdb_client_req_id__"`
}

func NewErrorResponse(status int, err string) Response {
	return Response{Message: err, Status: status}
}

func NewResponse(status int, message string, data any) Response {
	return Response{Data: data, Message: message, Status: status}
}

func errorStatus(err error) int {
	var schema_err *schema.Error
	switch {
	case errors.As(err, &schema_err):
		return http.StatusBadRequest
	case errors.Is(err, table.ErrDuplicateKey), errors.Is(err, db.ErrTableExists):
		return http.StatusConflict
	case errors.Is(err, table.ErrRecordNotFound), errors.Is(err, db.ErrTableNotFound):
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func resolveTable(database *db.DB, name string) (*table.Table, *Response) {
	t, err := database.GetTable(name)
	if err != nil {
		res := NewErrorResponse(errorStatus(err), err.Error())
		return nil, &res
	}
	return t, nil
}

type CreateTableRequest struct {
	Table      string            `json:"table"`
	PrimaryKey string            `json:"primary_key"`
	Schema     map[string]string `json:"schema"`
}

func CreateTableReqHandler(database *db.DB, raw []byte) Response {
	var req CreateTableRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	if req.PrimaryKey == "" {
		req.PrimaryKey = "id"
	}
	var s schema.Schema
	if req.Schema != nil {
		s = schema.Schema{}
		for field, kind_name := range req.Schema {
			kind, err := types.ParseKind(kind_name)
			if err != nil {
				return NewErrorResponse(http.StatusBadRequest, err.Error())
			}
			s[field] = kind
		}
	}
	if _, err := database.CreateTable(req.Table, req.PrimaryKey, s); err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}
	return NewResponse(http.StatusCreated,
		fmt.Sprintf("Created table %s", req.Table), nil)
}

type DropTableRequest struct {
	Table string `json:"table"`
}

func DropTableReqHandler(database *db.DB, raw []byte) Response {
	var req DropTableRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	if err := database.DropTable(req.Table); err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Dropped table %s", req.Table), nil)
}

func ListTablesReqHandler(database *db.DB, raw []byte) Response {
	return NewResponse(http.StatusOK, "Tables listed", database.ListTables())
}

type CreateIndexRequest struct {
	Table string `json:"table"`
	Field string `json:"field"`
	Kind  string `json:"kind"`
}

func CreateIndexReqHandler(database *db.DB, raw []byte) Response {
	var req CreateIndexRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	t, errRes := resolveTable(database, req.Table)
	if errRes != nil {
		return *errRes
	}
	if req.Kind == "" {
		req.Kind = string(index.KindHash)
	}
	t.CreateIndex(req.Field, index.Kind(req.Kind))
	if !t.HasIndex(req.Field) {
		return NewErrorResponse(http.StatusBadRequest,
			fmt.Sprintf("Could not create %s index on field %s", req.Kind, req.Field))
	}
	return NewResponse(http.StatusCreated,
		fmt.Sprintf("Created %s index on field %s in table %s", req.Kind, req.Field, req.Table), nil)
}

type InsertRequest struct {
	Table   string           `json:"table"`
	Record  map[string]any   `json:"record"`
	Records []map[string]any `json:"records"`
}

func InsertReqHandler(database *db.DB, raw []byte) Response {
	var req InsertRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	t, errRes := resolveTable(database, req.Table)
	if errRes != nil {
		return *errRes
	}

	batch := req.Records
	if req.Record != nil {
		batch = append([]map[string]any{req.Record}, batch...)
	}
	inserted := make([]types.Record, 0, len(batch))
	for _, raw_record := range batch {
		record := wireRecord(t, raw_record)
		if err := t.Insert(record); err != nil {
			return NewErrorResponse(errorStatus(err), err.Error())
		}
		inserted = append(inserted, record)
	}
	return NewResponse(http.StatusCreated,
		fmt.Sprintf("Inserted %d record(s) into table %s", len(inserted), req.Table),
		inserted)
}

type SelectRequest struct {
	Table   string         `json:"table"`
	Where   map[string]any `json:"where"`
	Columns any            `json:"columns"`
	OrderBy []string       `json:"order_by"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

func SelectReqHandler(database *db.DB, raw []byte) Response {
	var req SelectRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	t, errRes := resolveTable(database, req.Table)
	if errRes != nil {
		return *errRes
	}
	where, err := ParseWhere(t, req.Where)
	if err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	columns, err := parseColumns(req.Columns)
	if err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	results := t.Select(table.SelectOptions{
		Columns: columns,
		Where:   where,
		OrderBy: req.OrderBy,
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Found %d record(s) in table %s", len(results), req.Table),
		results)
}

type UpdateRequest struct {
	Table   string         `json:"table"`
	Changes map[string]any `json:"changes"`
	Where   map[string]any `json:"where"`
}

func UpdateReqHandler(database *db.DB, raw []byte) Response {
	var req UpdateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	t, errRes := resolveTable(database, req.Table)
	if errRes != nil {
		return *errRes
	}
	where, err := ParseWhere(t, req.Where)
	if err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	count, err := t.Update(wireRecord(t, req.Changes), where)
	if err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Updated %d record(s) in table %s", count, req.Table), count)
}

type DeleteRequest struct {
	Table string         `json:"table"`
	Where map[string]any `json:"where"`
}

func DeleteReqHandler(database *db.DB, raw []byte) Response {
	var req DeleteRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	t, errRes := resolveTable(database, req.Table)
	if errRes != nil {
		return *errRes
	}
	where, err := ParseWhere(t, req.Where)
	if err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	count, err := t.Delete(where)
	if err != nil {
		return NewErrorResponse(errorStatus(err), err.Error())
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Deleted %d record(s) from table %s", count, req.Table), count)
}

// wireRecord coerces decoded json values into their schema-declared kinds.
func wireRecord(t *table.Table, raw map[string]any) types.Record {
	record := make(types.Record, len(raw))
	for field, value := range raw {
		if kind, ok := t.FieldKind(field); ok {
			if coerced, ok := types.Coerce(kind, value); ok {
				record[field] = coerced
				continue
			}
		}
		record[field] = value
	}
	return record
}

// parseColumns accepts either a list of field names or an alias -> field
// mapping.
func parseColumns(raw any) (*query.ColumnSpec, error) {
	switch cols := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		names := make([]string, len(cols))
		for i, el := range cols {
			name, ok := el.(string)
			if !ok {
				return nil, errors.New("columns list must contain field names")
			}
			names[i] = name
		}
		return query.Cols(names...), nil
	case map[string]any:
		aliases := make(map[string]string, len(cols))
		for alias, el := range cols {
			field, ok := el.(string)
			if !ok {
				return nil, errors.New("columns mapping must map alias to field name")
			}
			aliases[alias] = field
		}
		return query.MapCols(aliases), nil
	}
	return nil, errors.New("columns must be a list or an alias mapping")
}
