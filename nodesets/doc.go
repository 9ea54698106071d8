// Package nodesets evaluates node set documents against node populations.
//
// A document maps names to definitions. A basic definition is an object whose
// keys are ANDed together:
//
//	{
//	  "Layer5PC": {"layer": 5, "mtype": {"$regex": "L5_.*PC"}},
//	  "Inner":    {"population": "cortex", "node_id": [1, 2, 3]},
//	  "Thick":    {"radius": {"$gte": 2.5}},
//	  "Both":     ["Layer5PC", "Inner"]
//	}
//
// A compound definition is a list of names whose selections are unioned.
// Missing and cyclic references are rejected by Parse.
//
//	sets, _ := nodesets.Load(ctx, "node_sets.json")
//	sel, _ := sets.Materialize(ctx, "Both", pop)
package nodesets
