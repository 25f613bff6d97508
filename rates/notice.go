package rates

import (
	"fmt"

	"github.com/bensave/wallet/finance"
)

// AppliedNotice confirms a conversion was credited.
func AppliedNotice(c Conversion) finance.Notice {
	return finance.Notice{
		Title:   "Money Added!",
		Message: fmt.Sprintf("%s has been added to your Bensave balance!", finance.FormatCedi(c.Converted)),
	}
}
