package extract

import (
	"github.com/dgallion1/qcsr/internal/srtree"
)

// bmdReport builds a rate-of-change report shaped like the scanner output:
// a wrapper container holding scan info, three datasets and a stray section.
func bmdReport() *srtree.Node {
	return srtree.NewContainer("",
		srtree.NewContainer("BMD Rate of Change Report",
			srtree.NewText("Patient ID", "P001"),
			srtree.NewContainer("Scan Information",
				srtree.NewText("Scan Mode", "Array"),
				srtree.NewNum("Scan Length", "12.5", "cm"),
			),
			srtree.NewContainer("Data Set 1",
				srtree.NewText("Data Set Title", "AP Spine Summary"),
				srtree.NewContainer("L1-L4",
					srtree.NewNum("BMD", "1.023", "g/cm2"),
					srtree.NewNum("T-Score", "-0.4", "{T-score}"),
				),
			),
			srtree.NewContainer("Data Set 2",
				srtree.NewText("Data Set Title", "AP Spine History"),
				srtree.NewContainer("Baseline",
					srtree.NewNum("BMD", "1.050", "g/cm2"),
				),
				srtree.NewNum("Change", "-2.6", "%"),
			),
			srtree.NewContainer("Data Set 3",
				srtree.NewText("Data Set Title", "Other Info"),
				srtree.NewText("Comment", "none"),
			),
			srtree.NewContainer("Reference Data",
				srtree.NewText("Reference", "NHANES"),
			),
		),
	)
}

func names(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
