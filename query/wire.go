package query

import "github.com/treesync/synccore/treedata"

// WireQuery is the JSON-ish wire form of a Filter sent through
// conn.Connection.Listen/Unlisten. The concrete field names are this
// module's choice (the wire protocol itself is out of spec.md's scope,
// §1); only the existence of toWireQuery/fromWireQuery is required.
type WireQuery struct {
	OrderBy    string `json:"orderBy,omitempty"`
	StartName  string `json:"startName,omitempty"`
	StartValue any    `json:"startValue,omitempty"`
	HasStart   bool   `json:"hasStart,omitempty"`
	EndName    string `json:"endName,omitempty"`
	EndValue   any    `json:"endValue,omitempty"`
	HasEnd     bool   `json:"hasEnd,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Reverse    bool   `json:"reverse,omitempty"`
}

// ToWireQuery renders f into its wire representation.
func (f Filter) ToWireQuery() WireQuery {
	return WireQuery{
		OrderBy:    f.orderByOrDefault(),
		StartName:  string(f.StartName),
		StartValue: scalarOf(f.StartValue),
		HasStart:   f.HasStart,
		EndName:    string(f.EndName),
		EndValue:   scalarOf(f.EndValue),
		HasEnd:     f.HasEnd,
		Limit:      f.Limit,
		Reverse:    f.Reverse,
	}
}

// FromWireQuery reconstructs a Filter from its wire representation.
func FromWireQuery(w WireQuery) Filter {
	return Filter{
		OrderBy:    w.OrderBy,
		HasStart:   w.HasStart,
		StartName:  treedata.Name(w.StartName),
		StartValue: leafOf(w.StartValue),
		HasEnd:     w.HasEnd,
		EndName:    treedata.Name(w.EndName),
		EndValue:   leafOf(w.EndValue),
		Limit:      w.Limit,
		Reverse:    w.Reverse,
	}
}

func scalarOf(t *treedata.TSD) any {
	if t == nil {
		return nil
	}
	return t.Value()
}

func leafOf(v any) *treedata.TSD {
	if v == nil {
		return nil
	}
	return treedata.Leaf(v, nil)
}
