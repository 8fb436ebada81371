package decision

// Action identifies a mitigation step.
type Action string

const (
	DoNothing                 Action = "do_nothing"
	IncreaseMonitoring        Action = "increase_monitoring"
	NotifyProcurement         Action = "notify_procurement"
	ActivateAlternativeSource Action = "activate_alternative_source"
	IncreaseSafetyStock       Action = "increase_safety_stock"
	ExpediteShipment          Action = "expedite_shipment"
	DiversifySuppliers        Action = "diversify_suppliers"
)

// Actions lists every catalog action in ascending urgency.
func Actions() []Action {
	return []Action{
		DoNothing,
		IncreaseMonitoring,
		DiversifySuppliers,
		NotifyProcurement,
		ActivateAlternativeSource,
		IncreaseSafetyStock,
		ExpediteShipment,
	}
}

// ActionSpec is one entry of the action catalog.
type ActionSpec struct {
	Description         string  `json:"description"`
	Urgency             int     `json:"urgency"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	LeadTimeDays        int     `json:"lead_time_days"`
}

// Catalog is the fixed table of mitigation actions.
var Catalog = map[Action]ActionSpec{
	DoNothing: {
		Description: "No immediate action required - monitor only",
		Urgency:     1,
	},
	IncreaseMonitoring: {
		Description:         "Increase monitoring frequency and alert thresholds for this supplier",
		Urgency:             2,
		ConfidenceThreshold: 0.35,
		LeadTimeDays:        1,
	},
	NotifyProcurement: {
		Description:         "Notify procurement team to review alternatives and contracts",
		Urgency:             3,
		ConfidenceThreshold: 0.50,
		LeadTimeDays:        2,
	},
	ActivateAlternativeSource: {
		Description:         "Activate pre-qualified alternative supplier(s)",
		Urgency:             4,
		ConfidenceThreshold: 0.65,
		LeadTimeDays:        3,
	},
	IncreaseSafetyStock: {
		Description:         "Immediately increase safety stock levels for affected materials",
		Urgency:             4,
		ConfidenceThreshold: 0.60,
		LeadTimeDays:        1,
	},
	ExpediteShipment: {
		Description:         "Expedite current shipments and negotiate priority delivery",
		Urgency:             5,
		ConfidenceThreshold: 0.70,
	},
	DiversifySuppliers: {
		Description:         "Initiate long-term supplier diversification project for this material/country",
		Urgency:             2,
		ConfidenceThreshold: 0.40,
		LeadTimeDays:        180,
	},
}

// Thresholds separate the critical, high and medium decision tiers.
type Thresholds struct {
	CriticalSeverity float64
	HighSeverity     float64
	MediumSeverity   float64

	CriticalDelayDays float64
	HighDelayDays     float64

	CriticalImpactPct float64
	HighImpactPct     float64
	MediumImpactPct   float64

	// Downgrade to do_nothing below all of these.
	MinorDelayDays float64
}

// DefaultThresholds are the tier boundaries used by NewEngine.
var DefaultThresholds = Thresholds{
	CriticalSeverity:  0.85,
	HighSeverity:      0.65,
	MediumSeverity:    0.40,
	CriticalDelayDays: 14,
	HighDelayDays:     7,
	CriticalImpactPct: 60,
	HighImpactPct:     40,
	MediumImpactPct:   20,
	MinorDelayDays:    3,
}

// Tables hold the per-material and per-country lookup data.
type Tables struct {
	// MaterialCriticality rates materials 1-5.
	MaterialCriticality map[string]int

	// CountryRisk rates countries' geopolitical risk 1-5.
	CountryRisk map[string]int

	// HighTension lists countries that trigger diversification of critical materials.
	HighTension []string

	// DefaultRating applies to materials and countries missing from the tables.
	DefaultRating int
}

// DefaultTables returns the built-in lookup data.
func DefaultTables() Tables {
	return Tables{
		MaterialCriticality: map[string]int{
			"Semiconductors":     5,
			"Steel":              4,
			"Paper pulp":         2,
			"Nuts & oils":        3,
			"Precision bearings": 4,
		},
		CountryRisk: map[string]int{
			"China":       4,
			"Taiwan":      5,
			"Brazil":      2,
			"Sweden":      1,
			"Germany":     1,
			"South Korea": 3,
			"Japan":       2,
			"Vietnam":     2,
			"India":       2,
		},
		HighTension:   []string{"China", "Taiwan"},
		DefaultRating: 2,
	}
}

func (t Tables) materialCriticality(material string) int {
	if v, ok := t.MaterialCriticality[material]; ok {
		return v
	}
	return t.DefaultRating
}

func (t Tables) countryRisk(country string) int {
	if v, ok := t.CountryRisk[country]; ok {
		return v
	}
	return t.DefaultRating
}

func (t Tables) highTension(country string) bool {
	for _, c := range t.HighTension {
		if c == country {
			return true
		}
	}
	return false
}
