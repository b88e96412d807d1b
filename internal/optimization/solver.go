package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Problem is one constrained minimization: an arbitrary scalar objective,
// a set of equality constraints (each zero at feasibility), a uniform box
// bound per weight, and a starting point.
type Problem struct {
	Objective   Objective
	Constraints []Constraint
	Bounds      Bounds
	Initial     []float64
}

// Solver solves a Problem. Implementations never fail with an error:
// a solve that does not converge reports Converged=false on the Outcome
// and still carries the best-found weights.
type Solver interface {
	Solve(problem Problem) Outcome
}

// successStatuses are the gonum termination statuses accepted as
// convergence.
var successStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
}

// PenaltySolver minimizes with equality constraints folded into the
// objective as quadratic penalties. Iterates are clamped to the box
// bounds inside the objective, gradients come from central finite
// differences, and the minimizer is BFGS with a Nelder-Mead retry when
// BFGS errors or stalls. A PenaltySolver is stateless and safe for
// concurrent use.
type PenaltySolver struct {
	// PenaltyWeight scales the squared constraint residuals added to
	// the objective.
	PenaltyWeight float64
	// MaxEvaluations caps objective evaluations per method attempt so a
	// degenerate problem terminates instead of hanging.
	MaxEvaluations int
	// FeasibilityTolerance bounds the constraint residuals accepted at
	// the final weights. An outcome whose residuals exceed it reports
	// Converged=false regardless of the minimizer status.
	FeasibilityTolerance float64
}

// NewPenaltySolver returns a solver with the standard penalty weight,
// evaluation budget, and feasibility tolerance.
func NewPenaltySolver() *PenaltySolver {
	return &PenaltySolver{
		PenaltyWeight:        1000.0,
		MaxEvaluations:       10000,
		FeasibilityTolerance: 1e-2,
	}
}

// Solve runs the minimization. The returned outcome's Value is the raw
// objective, without penalty terms, re-evaluated at the post-processed
// weights.
func (s *PenaltySolver) Solve(p Problem) Outcome {
	n := len(p.Initial)
	if n == 0 {
		return Outcome{Converged: false, Message: "empty starting point"}
	}

	penalized := func(x []float64) float64 {
		xProj := projectToBounds(x, p.Bounds)
		obj := p.Objective(xProj)
		for _, c := range p.Constraints {
			residual := c(xProj)
			obj += s.PenaltyWeight * residual * residual
		}
		return obj
	}

	problem := optimize.Problem{
		Func: penalized,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, penalized, x, &fd.Settings{Formula: fd.Central})
		},
	}

	settings := &optimize.Settings{FuncEvaluations: s.MaxEvaluations}
	initial := make([]float64, n)
	copy(initial, p.Initial)

	converged := false
	message := ""
	best := initial

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err == nil && successStatuses[result.Status] {
		converged = true
		best = result.X
	} else {
		if err == nil {
			message = fmt.Sprintf("BFGS did not converge: status=%v", result.Status)
		} else {
			message = fmt.Sprintf("BFGS failed: %v", err)
		}
		if result != nil && len(result.X) == n {
			best = result.X
		}

		// Retry from the starting point with a gradient-free method.
		retry, retryErr := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
		if retryErr == nil && successStatuses[retry.Status] {
			converged = true
			message = ""
			best = retry.X
		} else if retry != nil && len(retry.X) == n && retryErr == nil {
			// Keep whichever attempt found the lower penalized value.
			if penalized(retry.X) < penalized(best) {
				best = retry.X
			}
			message = fmt.Sprintf("%s; NelderMead did not converge: status=%v", message, retry.Status)
		} else if retryErr != nil {
			message = fmt.Sprintf("%s; NelderMead failed: %v", message, retryErr)
		}
	}

	weights := s.finalize(best, p.Bounds)

	for i, c := range p.Constraints {
		if residual := math.Abs(c(weights)); residual > s.FeasibilityTolerance {
			converged = false
			if message != "" {
				message += "; "
			}
			message += fmt.Sprintf("constraint %d residual %.4g exceeds tolerance", i, residual)
		}
	}

	return Outcome{
		Weights:   weights,
		Value:     p.Objective(weights),
		Converged: converged,
		Message:   message,
	}
}

// finalize projects the raw iterate to bounds and renormalizes it to sum
// one. Negative dust is zeroed only under non-negative lower bounds, so
// configured short positions survive.
func (s *PenaltySolver) finalize(x []float64, bounds Bounds) []float64 {
	final := projectToBounds(x, bounds)
	sum := floats.Sum(final)

	weights := make([]float64, len(final))
	for i := range final {
		w := final[i] / math.Max(sum, 1e-10)
		if bounds.Lower >= 0 {
			w = math.Max(0.0, w)
		}
		weights[i] = w
	}

	if total := floats.Sum(weights); total > 0 {
		floats.Scale(1.0/total, weights)
	}
	return weights
}

// projectToBounds clamps each coordinate into [Lower, Upper].
func projectToBounds(x []float64, bounds Bounds) []float64 {
	projected := make([]float64, len(x))
	for i, v := range x {
		projected[i] = math.Min(math.Max(v, bounds.Lower), bounds.Upper)
	}
	return projected
}
