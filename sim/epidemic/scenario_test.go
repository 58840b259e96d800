package epidemic

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popsim/popsim/sim"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_YAML(t *testing.T) {
	path := writeFile(t, "scenario.yaml", `
sim:
  seed: 3
  horizon: 30
population: 100
initial_infected: 2
transmission_rate: 0.5
contact_weights:
  infectious: 0.5
vaccination:
  daily_doses: 5
  age_weights:
    senior: 4
`)
	sc, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, int64(3), sc.Sim.Seed)
	require.NotNil(t, sc.Sim.Horizon)
	assert.Equal(t, 30.0, *sc.Sim.Horizon)
	assert.Equal(t, 100, sc.Population)
	assert.Equal(t, 0.5, *sc.TransmissionRate)
	assert.Equal(t, DefaultRecoveryRate, *sc.RecoveryRate, "unset rate takes the default")
	assert.Equal(t, DefaultHouseholdSize, sc.HouseholdSize)
	assert.Equal(t, DefaultEfficacy, *sc.Vaccination.Efficacy)
	assert.Equal(t, 0.5, sc.contactWeight(Infectious))
	assert.Equal(t, 1.0, sc.contactWeight(Recovered))
	assert.Equal(t, 4.0, sc.ageWeight(Senior))
	assert.Equal(t, 1.0, sc.ageWeight(Child))
}

func TestLoadScenario_TOML(t *testing.T) {
	path := writeFile(t, "scenario.toml", `
population = 100
initial_infected = 2
transmission_rate = 0.5
household_weight = 0.0

[sim]
seed = 3
horizon = 30.0

[contact_weights]
infectious = 0.5

[vaccination]
daily_doses = 5

[vaccination.age_weights]
senior = 4.0
`)
	sc, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, int64(3), sc.Sim.Seed)
	require.NotNil(t, sc.Sim.Horizon)
	assert.Equal(t, 30.0, *sc.Sim.Horizon)
	assert.Equal(t, 2, sc.InitialInfected)
	assert.Equal(t, 0.0, *sc.HouseholdWeight, "explicit zero is kept")
	assert.Equal(t, 0.5, sc.contactWeight(Infectious))
	assert.Equal(t, 5, sc.Vaccination.DailyDoses)
	assert.Equal(t, 4.0, sc.ageWeight(Senior))
}

func TestLoadScenario_Errors(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadScenario(writeFile(t, "bad.yaml", "population: [1, 2"))
	assert.Error(t, err)

	_, err = LoadScenario(writeFile(t, "bad.toml", "population = "))
	assert.Error(t, err)

	_, err = LoadScenario(writeFile(t, "invalid.yaml", "population: 5\ninitial_infected: 6\n"))
	assert.ErrorContains(t, err, "initial_infected")
}

func TestScenario_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(sc *Scenario)
		want   string
	}{
		{"negative population", func(sc *Scenario) { sc.Population = -1 }, "population"},
		{"household size", func(sc *Scenario) { sc.HouseholdSize = -2 }, "household_size"},
		{"zero recovery", func(sc *Scenario) { sc.RecoveryRate = float64Ptr(0) }, "recovery_rate"},
		{"infinite transmission", func(sc *Scenario) { sc.TransmissionRate = float64Ptr(math.Inf(1)) }, "transmission_rate"},
		{"household weight", func(sc *Scenario) { sc.HouseholdWeight = float64Ptr(1.5) }, "household_weight"},
		{"unknown status", func(sc *Scenario) { sc.ContactWeights = map[Status]float64{"zombie": 1} }, "zombie"},
		{"negative contact weight", func(sc *Scenario) { sc.ContactWeights = map[Status]float64{Recovered: -1} }, "contact weight"},
		{"mortality", func(sc *Scenario) { sc.MortalityRate = 2 }, "mortality_rate"},
		{"arrival rate", func(sc *Scenario) { sc.ArrivalRate = math.NaN() }, "arrival_rate"},
		{"report interval", func(sc *Scenario) { sc.ReportInterval = -1 }, "report_interval"},
		{"doses", func(sc *Scenario) { sc.Vaccination = &VaccinationConfig{DailyDoses: -1, Efficacy: float64Ptr(1)} }, "daily_doses"},
		{"efficacy", func(sc *Scenario) { sc.Vaccination = &VaccinationConfig{Efficacy: float64Ptr(-0.1)} }, "efficacy"},
		{"age band", func(sc *Scenario) {
			sc.Vaccination = &VaccinationConfig{Efficacy: float64Ptr(1), AgeWeights: map[AgeBand]float64{"toddler": 1}}
		}, "toddler"},
		{"sim config", func(sc *Scenario) { sc.Sim.Horizon = sim.Until(-5) }, "horizon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := testScenario()
			tt.modify(sc)
			assert.ErrorContains(t, sc.Validate(), tt.want)
		})
	}
	assert.NoError(t, testScenario().Validate())
}

func TestBandOf(t *testing.T) {
	assert.Equal(t, Child, BandOf(0))
	assert.Equal(t, Child, BandOf(17))
	assert.Equal(t, Adult, BandOf(18))
	assert.Equal(t, Adult, BandOf(64))
	assert.Equal(t, Senior, BandOf(65))
}
