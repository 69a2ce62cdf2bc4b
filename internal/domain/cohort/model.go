package cohort

// Disease tags attached to each stay. Stays of patients with an acute
// respiratory illness diagnosis are tagged ARI so downstream analysis
// can split the cohort; everything else is OTHER.
const (
	DiseaseARI   = "ARI"
	DiseaseOther = "OTHER"
)

// ariICD10Codes selects the ARI subcohort from the diagnosis table.
var ariICD10Codes = []string{
	"J96.0",  // acute respiratory failure
	"J96.00", // unspecified whether with hypoxia or hypercapnia
	"J96.01", // with hypoxia
	"J96.02", // with hypercapnia
	"J80",    // acute respiratory distress syndrome
	"J44.0",  // COPD with acute lower respiratory infection
	"J44.1",  // COPD with acute exacerbation
	"J12",    // viral pneumonia
	"J13",    // pneumococcal pneumonia
	"J14",    // H. influenzae pneumonia
	"J15",    // bacterial pneumonia
	"J18",    // pneumonia, unspecified organism
}

// Filter restricts which stays enter a scoring run. Stays without an
// admission or discharge timestamp pass the duration bounds unchecked;
// the missing-anchor case is reported per stay during scoring rather
// than silently dropped here.
type Filter struct {
	MinStayHours float64
	MaxStayHours float64
}

// DefaultFilter keeps stays between 6 hours and 100 days.
func DefaultFilter() Filter {
	return Filter{MinStayHours: 6, MaxStayHours: 100 * 24}
}
