/*
 * Copyright 2024 The Wireflow Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package external

//Node configuration example:
//{
//        "id": "d1",
//        "type": "dbClient",
//        "name": "store readings",
//        "configuration": {
//          "driverName": "mysql",
//          "dsn": "root:root@tcp(127.0.0.1:3306)/test",
//          "sql": "insert into readings (topic, value) values (?, ?)",
//          "params": ["${topic}", "${payload}"]
//        }
//  }
import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/wireflow/wireflow/api/types"
	"github.com/wireflow/wireflow/components/base"
	"github.com/wireflow/wireflow/utils/str"
)

func init() {
	Registry.Add(&DbClientNode{})
}

const (
	selectOp = "SELECT"
	insertOp = "INSERT"
	deleteOp = "DELETE"
	updateOp = "UPDATE"
)

// DbClientNodeConfiguration node configuration
type DbClientNodeConfiguration struct {
	//DriverName is mysql or postgres.
	DriverName string
	//Dsn is the connection string passed to sql.Open.
	Dsn string
	//PoolSize caps open connections. Zero leaves the driver default.
	PoolSize int
	//Sql is the statement. ? placeholders are rewritten to $n for postgres.
	Sql string
	//Params are the statement arguments. String params may reference
	//${payload}, ${payload.key}, ${topic} and ${correlationId}.
	Params []interface{}
	//GetOne returns the first row as a map instead of a slice of rows.
	GetOne bool
}

// DbClientNode runs one parameterized SQL statement per message. SELECT
// results become the outbound payload; INSERT/UPDATE/DELETE record their row
// counts in the message extensions.
type DbClientNode struct {
	Config DbClientNodeConfiguration

	client *sql.DB
	opType string
}

// Type component type
func (x *DbClientNode) Type() string {
	return "dbClient"
}

func (x *DbClientNode) New() types.Node {
	return &DbClientNode{Config: DbClientNodeConfiguration{
		DriverName: "mysql",
		Dsn:        "root:root@tcp(127.0.0.1:3306)/test",
	}}
}

// Init opens the connection pool. sql.Open does not dial, so a broken DSN
// surfaces on first use, not at load.
func (x *DbClientNode) Init(_ types.Config, configuration types.Configuration) error {
	if err := base.DecodeConfig(configuration, &x.Config); err != nil {
		return err
	}
	if x.Config.DriverName == "" {
		x.Config.DriverName = "mysql"
	}
	if x.Config.Sql == "" {
		return errors.New("sql can not empty")
	}
	x.Config.Sql = convertDollarPlaceholder(x.Config.Sql, x.Config.DriverName)
	x.opType = getOpType(x.Config.Sql)
	switch x.opType {
	case selectOp, insertOp, updateOp, deleteOp:
	default:
		return fmt.Errorf("unsupported sql statement: %s", x.Config.Sql)
	}

	client, err := sql.Open(x.Config.DriverName, x.Config.Dsn)
	if err != nil {
		return err
	}
	if x.Config.PoolSize > 0 {
		client.SetMaxOpenConns(x.Config.PoolSize)
	}
	x.client = client
	return nil
}

// OnMsg executes the statement with the message's parameter values.
func (x *DbClientNode) OnMsg(ctx types.NodeContext, msg types.Message) {
	if x.client == nil {
		ctx.ReportError(base.ErrClientNotInit, &msg)
		return
	}
	params := make([]interface{}, len(x.Config.Params))
	for i, item := range x.Config.Params {
		params[i] = resolveParam(item, msg)
	}

	out := msg.Copy()
	var err error
	switch x.opType {
	case selectOp:
		var data interface{}
		data, err = x.query(x.Config.Sql, params)
		if err == nil {
			out.Payload = data
		}
	default:
		var result sql.Result
		result, err = x.client.Exec(x.Config.Sql, params...)
		if err == nil {
			if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
				out.SetExtension("rowsAffected", rowsAffected)
			}
			if x.opType == insertOp {
				if lastInsertId, liErr := result.LastInsertId(); liErr == nil {
					out.SetExtension("lastInsertId", lastInsertId)
				}
			}
		}
	}
	if err != nil {
		ctx.ReportError(err, &msg)
		return
	}
	ctx.Send(0, out)
	ctx.Done(msg)
}

// OnClose closes the connection pool.
func (x *DbClientNode) OnClose(_ bool) {
	if x.client != nil {
		_ = x.client.Close()
		x.client = nil
	}
}

// query returns rows as []map[string]interface{}, or the first row when
// GetOne is set.
func (x *DbClientNode) query(sqlStr string, params []interface{}) (interface{}, error) {
	rows, err := x.client.Query(sqlStr, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(columns))
	for i := range values {
		var v interface{}
		values[i] = &v
	}

	result := make([]map[string]interface{}, 0)
	for rows.Next() {
		if err = rows.Scan(values...); err != nil {
			return nil, err
		}
		m := make(map[string]interface{}, len(columns))
		for i, name := range columns {
			v := *(values[i].(*interface{}))
			// drivers hand back []byte for text columns
			if b, ok := v.([]byte); ok {
				m[name] = string(b)
			} else {
				m[name] = v
			}
		}
		result = append(result, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if x.Config.GetOne {
		if len(result) > 0 {
			return result[0], nil
		}
		return nil, nil
	}
	return result, nil
}

// resolveParam substitutes message variables into string parameters.
func resolveParam(item interface{}, msg types.Message) interface{} {
	s, ok := item.(string)
	if !ok || !str.CheckHasVar(s) {
		return item
	}
	switch s {
	case "${payload}":
		return msg.Payload
	case "${topic}":
		return msg.Topic
	case "${correlationId}":
		return msg.CorrelationId
	}
	dict := map[string]string{
		"payload":       str.ToString(msg.Payload),
		"topic":         msg.Topic,
		"correlationId": msg.CorrelationId,
	}
	if m, ok := msg.Payload.(map[string]interface{}); ok {
		for k, v := range m {
			dict["payload."+k] = str.ToString(v)
		}
	}
	return str.SprintfDict(s, dict)
}

func getOpType(sqlStr string) string {
	fields := strings.Fields(strings.TrimSpace(sqlStr))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// convertDollarPlaceholder rewrites ? placeholders to the $n style postgres
// expects.
func convertDollarPlaceholder(sqlStr string, driverName string) string {
	if driverName != "postgres" {
		return sqlStr
	}
	var sb strings.Builder
	n := 0
	for _, r := range sqlStr {
		if r == '?' {
			n++
			sb.WriteString(fmt.Sprintf("$%d", n))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
