package benchmark

import (
	"fmt"
	"strconv"
	"strings"

	gddl "dbbench/internal/ddl"
)

// Case is one analytical query in the battery. Templates are keyed by engine
// kind; "{{table}}" is replaced by the quoted table name (or the JSON string
// of a collection name for mongodb).
type Case struct {
	ID          string
	Description string
	Templates   map[string]string
	// ScalarRows makes rowsReturned the single value of the result (a row
	// count) instead of the number of result rows.
	ScalarRows bool
}

const sortedLimit = 100

var sqlQuotes = map[string][2]string{
	"postgres":   {`"`, `"`},
	"sqlite":     {`"`, `"`},
	"mysql":      {"`", "`"},
	"clickhouse": {"`", "`"},
	"mssql":      {"[", "]"},
}

func sqlAll(q string) map[string]string {
	m := make(map[string]string, len(sqlQuotes))
	for k := range sqlQuotes {
		m[k] = q
	}
	return m
}

func with(m map[string]string, kv ...string) map[string]string {
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

var cases = []Case{
	{
		ID:          "count-all",
		Description: "count every row",
		ScalarRows:  true,
		Templates: with(sqlAll(`SELECT COUNT(*) FROM {{table}}`),
			"mongodb", `{"collection": {{table}}, "operation": "count"}`),
	},
	{
		ID:          "count-by-sex",
		Description: "row count grouped by sex",
		Templates: with(sqlAll(`SELECT sex, COUNT(*) AS n FROM {{table}} GROUP BY sex ORDER BY sex`),
			"mongodb", `{"collection": {{table}}, "operation": "aggregate", "pipeline": [
  {"$group": {"_id": "$sex", "n": {"$sum": 1}}},
  {"$sort": {"_id": 1}}]}`),
	},
	{
		ID:          "filter-by-sex",
		Description: "full scan of rows where sex = 'Female'",
		Templates: with(sqlAll(`SELECT * FROM {{table}} WHERE sex = 'Female'`),
			"mongodb", `{"collection": {{table}}, "operation": "find", "filter": {"sex": "Female"}}`),
	},
	{
		ID:          "avg-age-by-sex",
		Description: "average age grouped by sex, as whole days since dob divided by 365.25",
		Templates: map[string]string{
			"postgres":   `SELECT sex, AVG((current_date - dob) / 365.25) AS avg_age FROM {{table}} GROUP BY sex ORDER BY sex`,
			"mysql":      `SELECT sex, AVG(DATEDIFF(CURDATE(), dob) / 365.25) AS avg_age FROM {{table}} GROUP BY sex ORDER BY sex`,
			"mssql":      `SELECT sex, AVG(DATEDIFF(day, dob, CAST(GETDATE() AS date)) / 365.25) AS avg_age FROM {{table}} GROUP BY sex ORDER BY sex`,
			"sqlite":     `SELECT sex, AVG((julianday(date('now')) - julianday(dob)) / 365.25) AS avg_age FROM {{table}} GROUP BY sex ORDER BY sex`,
			"clickhouse": `SELECT sex, avg(dateDiff('day', dob, today()) / 365.25) AS avg_age FROM {{table}} GROUP BY sex ORDER BY sex`,
			"mongodb": `{"collection": {{table}}, "operation": "aggregate", "pipeline": [
  {"$group": {"_id": "$sex", "avg_age": {"$avg": {"$divide": [
    {"$dateDiff": {"startDate": "$dob", "endDate": "$$NOW", "unit": "day"}}, 365.25]}}}},
  {"$sort": {"_id": 1}}]}`,
		},
	},
	{
		ID:          "sorted-limit-by-dob",
		Description: fmt.Sprintf("first %d rows ordered by dob", sortedLimit),
		Templates: with(sqlAll(fmt.Sprintf(`SELECT * FROM {{table}} ORDER BY dob, user_id LIMIT %d`, sortedLimit)),
			"mssql", fmt.Sprintf(`SELECT TOP %d * FROM {{table}} ORDER BY dob, user_id`, sortedLimit),
			"mongodb", fmt.Sprintf(`{"collection": {{table}}, "operation": "find", "sort": {"dob": 1, "user_id": 1}, "limit": %d}`, sortedLimit)),
	},
}

// Cases returns the static battery in its fixed order.
func Cases() []Case {
	return append([]Case(nil), cases...)
}

// Select returns the cases named by ids, in battery order. Empty ids selects
// every case.
func Select(ids []string) ([]Case, error) {
	if len(ids) == 0 {
		return Cases(), nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Case
	for _, c := range cases {
		if want[c.ID] {
			out = append(out, c)
			delete(want, c.ID)
		}
	}
	if len(want) > 0 {
		var unknown []string
		for _, id := range ids {
			if want[id] {
				unknown = append(unknown, id)
			}
		}
		return nil, fmt.Errorf("unknown benchmark case(s): %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// Query renders the case for an engine kind and table.
func (c Case) Query(kind, table string) (string, error) {
	tmpl, ok := c.Templates[kind]
	if !ok {
		return "", fmt.Errorf("case %s has no query for engine kind %q", c.ID, kind)
	}
	var quoted string
	if q, ok := sqlQuotes[kind]; ok {
		quoted = gddl.QuoteFQN(table, q[0], q[1])
	} else {
		quoted = strconv.Quote(table)
	}
	return strings.ReplaceAll(tmpl, "{{table}}", quoted), nil
}
