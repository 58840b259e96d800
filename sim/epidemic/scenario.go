package epidemic

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/popsim/popsim/sim"
)

// Scenario parameterizes one SIR run. Rates are per unit of simulation time
// (days). Nil pointer fields mean "not set in the file" and take the defaults
// applied by LoadScenario.
type Scenario struct {
	Sim sim.Config `yaml:"sim" toml:"sim"`

	Population      int `yaml:"population" toml:"population"`
	InitialInfected int `yaml:"initial_infected" toml:"initial_infected"`
	HouseholdSize   int `yaml:"household_size" toml:"household_size"`

	// TransmissionRate is the contact rate of one infectious person.
	TransmissionRate *float64 `yaml:"transmission_rate" toml:"transmission_rate"`
	// RecoveryRate is the inverse of the mean infectious period.
	RecoveryRate *float64 `yaml:"recovery_rate" toml:"recovery_rate"`
	// HouseholdWeight is the probability a contact stays inside the household.
	HouseholdWeight *float64 `yaml:"household_weight" toml:"household_weight"`
	// ContactWeights scales how often people of each status are met outside
	// the household. Missing statuses weigh 1.
	ContactWeights map[Status]float64 `yaml:"contact_weights" toml:"contact_weights"`

	Vaccination *VaccinationConfig `yaml:"vaccination" toml:"vaccination"`

	// ArrivalRate adds susceptible people to random households.
	ArrivalRate float64 `yaml:"arrival_rate" toml:"arrival_rate"`
	// MortalityRate is the probability that an infection ends in death
	// rather than recovery.
	MortalityRate float64 `yaml:"mortality_rate" toml:"mortality_rate"`
	// ReportInterval spaces the compartment reports. 0 disables them.
	ReportInterval float64 `yaml:"report_interval" toml:"report_interval"`
}

// VaccinationConfig describes a daily vaccination campaign.
type VaccinationConfig struct {
	Start      float64 `yaml:"start" toml:"start"`
	DailyDoses int     `yaml:"daily_doses" toml:"daily_doses"`
	// Efficacy is the probability a dose prevents infection.
	Efficacy *float64 `yaml:"efficacy" toml:"efficacy"`
	// AgeWeights prioritizes age bands. Missing bands weigh 1.
	AgeWeights map[AgeBand]float64 `yaml:"age_weights" toml:"age_weights"`
}

// Default parameter values.
const (
	DefaultTransmissionRate = 0.4
	DefaultRecoveryRate     = 0.1
	DefaultHouseholdWeight  = 0.3
	DefaultEfficacy         = 0.9
	DefaultHouseholdSize    = 4
)

// LoadScenario reads a YAML or TOML (by .toml extension) scenario file,
// applies defaults and validates it.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var sc Scenario
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	sc.ApplyDefaults()
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

func float64Ptr(v float64) *float64 { return &v }

// ApplyDefaults fills unset fields.
func (sc *Scenario) ApplyDefaults() {
	if sc.TransmissionRate == nil {
		sc.TransmissionRate = float64Ptr(DefaultTransmissionRate)
	}
	if sc.RecoveryRate == nil {
		sc.RecoveryRate = float64Ptr(DefaultRecoveryRate)
	}
	if sc.HouseholdWeight == nil {
		sc.HouseholdWeight = float64Ptr(DefaultHouseholdWeight)
	}
	if sc.HouseholdSize == 0 {
		sc.HouseholdSize = DefaultHouseholdSize
	}
	if sc.Vaccination != nil && sc.Vaccination.Efficacy == nil {
		sc.Vaccination.Efficacy = float64Ptr(DefaultEfficacy)
	}
}

func isProbability(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func isRate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Validate checks sizes, rates and probabilities. Call ApplyDefaults first.
func (sc *Scenario) Validate() error {
	if err := sc.Sim.Validate(); err != nil {
		return err
	}
	if sc.Population < 0 {
		return fmt.Errorf("population must be >= 0, got %d", sc.Population)
	}
	if sc.InitialInfected < 0 || sc.InitialInfected > sc.Population {
		return fmt.Errorf("initial_infected must be in [0, %d], got %d", sc.Population, sc.InitialInfected)
	}
	if sc.HouseholdSize < 1 {
		return fmt.Errorf("household_size must be >= 1, got %d", sc.HouseholdSize)
	}
	if sc.TransmissionRate == nil || !isRate(*sc.TransmissionRate) {
		return fmt.Errorf("transmission_rate must be a finite non-negative number")
	}
	if sc.RecoveryRate == nil || !isRate(*sc.RecoveryRate) || *sc.RecoveryRate == 0 {
		return fmt.Errorf("recovery_rate must be a finite positive number")
	}
	if sc.HouseholdWeight == nil || !isProbability(*sc.HouseholdWeight) {
		return fmt.Errorf("household_weight must be in [0, 1]")
	}
	for status, w := range sc.ContactWeights {
		if !ValidStatus(status) {
			return fmt.Errorf("unknown status %q in contact_weights", status)
		}
		if !isRate(w) {
			return fmt.Errorf("contact weight for %q must be finite and non-negative, got %v", status, w)
		}
	}
	if !isRate(sc.ArrivalRate) {
		return fmt.Errorf("arrival_rate must be finite and non-negative, got %v", sc.ArrivalRate)
	}
	if !isProbability(sc.MortalityRate) {
		return fmt.Errorf("mortality_rate must be in [0, 1], got %v", sc.MortalityRate)
	}
	if !isRate(sc.ReportInterval) {
		return fmt.Errorf("report_interval must be finite and non-negative, got %v", sc.ReportInterval)
	}
	if v := sc.Vaccination; v != nil {
		if v.DailyDoses < 0 {
			return fmt.Errorf("vaccination.daily_doses must be >= 0, got %d", v.DailyDoses)
		}
		if math.IsNaN(v.Start) || math.IsInf(v.Start, 0) {
			return fmt.Errorf("vaccination.start must be finite")
		}
		if v.Efficacy == nil || !isProbability(*v.Efficacy) {
			return fmt.Errorf("vaccination.efficacy must be in [0, 1]")
		}
		for band, w := range v.AgeWeights {
			if !ValidAgeBand(band) {
				return fmt.Errorf("unknown age band %q in vaccination.age_weights", band)
			}
			if !isRate(w) {
				return fmt.Errorf("age weight for %q must be finite and non-negative, got %v", band, w)
			}
		}
	}
	return nil
}

func (sc *Scenario) contactWeight(s Status) float64 {
	if w, ok := sc.ContactWeights[s]; ok {
		return w
	}
	return 1
}

func (sc *Scenario) ageWeight(b AgeBand) float64 {
	if sc.Vaccination == nil {
		return 1
	}
	if w, ok := sc.Vaccination.AgeWeights[b]; ok {
		return w
	}
	return 1
}

// efficacy is the protection of a dose, or the default when the scenario has
// no campaign (a continuation of a run that had one).
func (sc *Scenario) efficacy() float64 {
	if sc.Vaccination == nil || sc.Vaccination.Efficacy == nil {
		return DefaultEfficacy
	}
	return *sc.Vaccination.Efficacy
}
