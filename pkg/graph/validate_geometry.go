package graph

import "fmt"

// ---------------------------------------------------------------------------
// Tier 2: geometric validation (errors + warnings)
// ---------------------------------------------------------------------------

// planeEpsilon is the smallest |(B-A)x(C-A)| accepted for a cut plane.
const planeEpsilon = 1e-9

// validateGeometry runs all Tier 2 geometric checks.
// Returns errors (blocking) and warnings (advisory) separately.
func validateGeometry(g *SceneGraph) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	errs = append(errs, validateNonZeroDimensions(g)...)
	errs = append(errs, validateCutPlanes(g)...)

	warnings = append(warnings, validateDuplicateCuts(g)...)
	warnings = append(warnings, validateCutsPlaced(g)...)

	return errs, warnings
}

func positive(id NodeID, what string, v float64) []ValidationError {
	if v > 0 {
		return nil
	}
	return []ValidationError{{
		NodeID:   id,
		Message:  fmt.Sprintf("%s is %.4f, must be positive", what, v),
		Severity: SeverityError,
	}}
}

// validateNonZeroDimensions checks that every primitive has positive extents.
func validateNonZeroDimensions(g *SceneGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		switch d := node.Data.(type) {
		case BoxData:
			errs = append(errs, positive(node.ID, "box size X", d.Size.X)...)
			errs = append(errs, positive(node.ID, "box size Y", d.Size.Y)...)
			errs = append(errs, positive(node.ID, "box size Z", d.Size.Z)...)
		case CylinderData:
			errs = append(errs, positive(node.ID, "cylinder height", d.Height)...)
			errs = append(errs, positive(node.ID, "cylinder radius", d.Radius)...)
			if d.Segments != 0 && d.Segments < 3 {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("cylinder segments is %d, need at least 3", d.Segments),
					Severity: SeverityError,
				})
			}
		case SphereData:
			errs = append(errs, positive(node.ID, "sphere radius", d.Radius)...)
		}
	}

	return errs
}

// validateCutPlanes checks that the three points of every cut span a plane.
func validateCutPlanes(g *SceneGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Cuts() {
		cd, ok := node.Data.(CutData)
		if !ok {
			continue
		}
		if cd.Normal().Length() < planeEpsilon {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("cut points %s %s %s are collinear", cd.A, cd.B, cd.C),
				Severity: SeverityError,
			})
		}
	}

	return errs
}

// cutKey identifies a cut by target and plane points.
type cutKey struct {
	target  NodeID
	a, b, c Vec3
}

// validateDuplicateCuts warns when the same plane is applied to the same
// piece twice. The second pass only produces slivers along the seam.
func validateDuplicateCuts(g *SceneGraph) []ValidationWarning {
	var warnings []ValidationWarning
	seen := make(map[cutKey]NodeID)

	for _, node := range g.Cuts() {
		cd, ok := node.Data.(CutData)
		if !ok {
			continue
		}
		key := cutKey{cd.Target, cd.A, cd.B, cd.C}
		if firstID, exists := seen[key]; exists {
			warnings = append(warnings, ValidationWarning{
				NodeID:  node.ID,
				Message: fmt.Sprintf("duplicate cut: same plane already applied by node %s", firstID.Short()),
			})
			continue
		}
		seen[key] = node.ID
	}

	return warnings
}

// validateCutsPlaced warns when a cut targets a piece no scene places.
func validateCutsPlaced(g *SceneGraph) []ValidationWarning {
	var warnings []ValidationWarning
	reachable := reachableFromRoots(g)

	for _, node := range g.Cuts() {
		cd, ok := node.Data.(CutData)
		if !ok {
			continue
		}
		target := g.Nodes[cd.Target]
		if target == nil || reachable[cd.Target] {
			continue
		}
		warnings = append(warnings, ValidationWarning{
			NodeID:  node.ID,
			Message: fmt.Sprintf("cut target %q is not placed in any scene; the cut has no effect", target.Name),
		})
	}

	return warnings
}
