// Package gate holds the single authoritative routing decision for the
// post-signup onboarding flow. Every entry point (session bootstrap,
// navigation guard, completion handler) calls Decide rather than
// re-deriving the policy.
package gate

// Route is the canonical destination computed for a user.
type Route string

const (
	RouteLogin      Route = "login"
	RouteOnboarding Route = "onboarding"
	RouteDashboard  Route = "dashboard"
	RouteContact    Route = "contact"
)

// Input carries the settled state the decision depends on. Callers gather
// all fields first, then call Decide once per evaluation.
type Input struct {
	Authenticated      bool
	ActiveOrTrialing   bool
	InTrial            bool
	OnboardingComplete bool
	PlanSelected       bool
}

// Decide maps account/subscription/trial state to a single destination.
// First match wins; the order is the tie-break policy:
//
//  1. unauthenticated users always go to login
//  2. an active or trialing subscription grants the dashboard
//  3. an in-progress trial grants the dashboard (provisional access)
//  4. completed onboarding with a selected plan grants the dashboard
//  5. everyone else goes to onboarding
//
// Decide is a pure function: no I/O, no side effects, identical inputs
// always yield identical output.
func Decide(in Input) Route {
	switch {
	case !in.Authenticated:
		return RouteLogin
	case in.ActiveOrTrialing:
		return RouteDashboard
	case in.InTrial:
		return RouteDashboard
	case in.OnboardingComplete && in.PlanSelected:
		return RouteDashboard
	default:
		return RouteOnboarding
	}
}
