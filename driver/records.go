package driver

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// convertRecords maps each record's keys to converted values.
func convertRecords(records []*neo4j.Record) []map[string]any {
	if len(records) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(rec.Keys))
		for i, key := range rec.Keys {
			if i < len(rec.Values) {
				row[key] = convertValue(rec.Values[i])
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// convertValue turns a Bolt value into the plain Go value ogm hydrates
// from. Graph entities become their property maps.
func convertValue(v any) any {
	switch x := v.(type) {
	case neo4j.Node:
		return convertMap(x.Props)
	case *neo4j.Node:
		if x == nil {
			return nil
		}
		return convertMap(x.Props)
	case neo4j.Relationship:
		return convertMap(x.Props)
	case neo4j.Path:
		nodes := make([]any, len(x.Nodes))
		for i, n := range x.Nodes {
			nodes[i] = convertMap(n.Props)
		}
		rels := make([]any, len(x.Relationships))
		for i, r := range x.Relationships {
			rels[i] = convertMap(r.Props)
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case map[string]any:
		return convertMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = convertValue(e)
		}
		return out
	case neo4j.Date:
		return x.Time()
	case neo4j.LocalDateTime:
		return x.Time()
	case neo4j.LocalTime:
		return x.Time()
	case neo4j.Time:
		return x.Time()
	case neo4j.Duration:
		return durationOf(x)
	default:
		return v
	}
}

func convertMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = convertValue(v)
	}
	return out
}

// durationOf flattens a Cypher duration. Months count as 30 days.
func durationOf(d neo4j.Duration) time.Duration {
	days := d.Months*30 + d.Days
	return time.Duration(days)*24*time.Hour +
		time.Duration(d.Seconds)*time.Second +
		time.Duration(d.Nanos)
}
