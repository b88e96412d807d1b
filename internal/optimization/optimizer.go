package optimization

// Optimizer builds the three portfolio problems and hands them to a
// Solver. All modes start from the equal-weighted portfolio and share
// the budget constraint; bounds come from the run settings.
type Optimizer struct {
	solver Solver
}

// NewOptimizer creates an optimizer on the given solver. A nil solver
// selects the default penalty solver.
func NewOptimizer(solver Solver) *Optimizer {
	if solver == nil {
		solver = NewPenaltySolver()
	}
	return &Optimizer{solver: solver}
}

// MaxSharpe finds the portfolio maximizing the Sharpe ratio, solved as
// minimization of the negative Sharpe objective under the budget
// constraint.
func (o *Optimizer) MaxSharpe(stats *ReturnStatistics, settings Settings) Outcome {
	settings = settings.withDefaults()
	return o.solver.Solve(Problem{
		Objective:   NegativeSharpe(stats, settings.RiskFreeRate, settings.TradingDays),
		Constraints: []Constraint{BudgetConstraint()},
		Bounds:      Bounds{Lower: settings.LowerBound, Upper: settings.UpperBound},
		Initial:     EqualWeights(stats.NumAssets()),
	})
}

// MinVolatility finds the global minimum-volatility portfolio under the
// budget constraint.
func (o *Optimizer) MinVolatility(stats *ReturnStatistics, settings Settings) Outcome {
	settings = settings.withDefaults()
	return o.solver.Solve(Problem{
		Objective:   VolatilityOnly(stats, settings.TradingDays),
		Constraints: []Constraint{BudgetConstraint()},
		Bounds:      Bounds{Lower: settings.LowerBound, Upper: settings.UpperBound},
		Initial:     EqualWeights(stats.NumAssets()),
	})
}

// EfficientReturn finds the minimum-volatility portfolio whose
// annualized expected return is pinned to the target. One such solve per
// sweep target traces the frontier.
func (o *Optimizer) EfficientReturn(stats *ReturnStatistics, target float64, settings Settings) Outcome {
	settings = settings.withDefaults()
	return o.solver.Solve(Problem{
		Objective: VolatilityOnly(stats, settings.TradingDays),
		Constraints: []Constraint{
			BudgetConstraint(),
			TargetReturnConstraint(stats, target, settings.TradingDays),
		},
		Bounds:  Bounds{Lower: settings.LowerBound, Upper: settings.UpperBound},
		Initial: EqualWeights(stats.NumAssets()),
	})
}
