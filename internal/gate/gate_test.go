package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide_PriorityOrder(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Route
	}{
		{
			name: "unauthenticated always routes to login",
			in:   Input{Authenticated: false},
			want: RouteLogin,
		},
		{
			name: "unauthenticated routes to login even with every other flag set",
			in: Input{
				Authenticated:      false,
				ActiveOrTrialing:   true,
				InTrial:            true,
				OnboardingComplete: true,
				PlanSelected:       true,
			},
			want: RouteLogin,
		},
		{
			name: "active subscription grants dashboard",
			in:   Input{Authenticated: true, ActiveOrTrialing: true},
			want: RouteDashboard,
		},
		{
			name: "active subscription overrides incomplete onboarding bookkeeping",
			in: Input{
				Authenticated:      true,
				ActiveOrTrialing:   true,
				OnboardingComplete: false,
				PlanSelected:       false,
			},
			want: RouteDashboard,
		},
		{
			name: "in-progress trial grants dashboard without a subscription",
			in:   Input{Authenticated: true, InTrial: true},
			want: RouteDashboard,
		},
		{
			name: "completed onboarding with selected plan grants dashboard",
			in: Input{
				Authenticated:      true,
				OnboardingComplete: true,
				PlanSelected:       true,
			},
			want: RouteDashboard,
		},
		{
			name: "completed onboarding without selected plan routes to onboarding",
			in: Input{
				Authenticated:      true,
				OnboardingComplete: true,
				PlanSelected:       false,
			},
			want: RouteOnboarding,
		},
		{
			name: "selected plan without completed onboarding routes to onboarding",
			in: Input{
				Authenticated:      true,
				OnboardingComplete: false,
				PlanSelected:       true,
			},
			want: RouteOnboarding,
		},
		{
			name: "fresh authenticated user routes to onboarding",
			in:   Input{Authenticated: true},
			want: RouteOnboarding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.in))
		})
	}
}

func TestDecide_AllInputCombinations(t *testing.T) {
	// Exhaustive check over the whole input space: the decision must follow
	// the documented priority order for every combination.
	for mask := 0; mask < 32; mask++ {
		in := Input{
			Authenticated:      mask&1 != 0,
			ActiveOrTrialing:   mask&2 != 0,
			InTrial:            mask&4 != 0,
			OnboardingComplete: mask&8 != 0,
			PlanSelected:       mask&16 != 0,
		}

		var want Route
		switch {
		case !in.Authenticated:
			want = RouteLogin
		case in.ActiveOrTrialing || in.InTrial:
			want = RouteDashboard
		case in.OnboardingComplete && in.PlanSelected:
			want = RouteDashboard
		default:
			want = RouteOnboarding
		}

		assert.Equal(t, want, Decide(in), "input %+v", in)
	}
}

func TestDecide_Deterministic(t *testing.T) {
	in := Input{Authenticated: true, InTrial: true}

	first := Decide(in)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Decide(in))
	}
}
