// Package graph defines the scene graph a cut script evaluates to.
// The scene graph is an immutable DAG of pieces, transforms, groups,
// and cuts. Cuts are kept in script order so replaying them against the
// tessellated pieces is deterministic.
package graph
