package mobilemoney

import (
	"fmt"

	"github.com/bensave/wallet/finance"
)

// PromptSentNotice tells the user to approve the prompt on their phone.
func PromptSentNotice(req Request) finance.Notice {
	return finance.Notice{
		Title: "Prompt Sent!",
		Message: fmt.Sprintf("A prompt has been sent to %s via %s. Please check your phone and approve the %s of %s.",
			req.PhoneNumber, req.Provider.ShortName(), req.Kind, finance.FormatCedi(req.Amount)),
	}
}

// OutcomeNotice reports how a transfer resolved.
func OutcomeNotice(req Request, o Outcome) finance.Notice {
	if !o.Approved {
		return finance.Notice{
			Title:   "Transaction Declined",
			Message: "The transaction was declined, cancelled, or timed out on your device. Please try again if needed.",
		}
	}
	verb := "deposited to"
	if req.Kind == finance.Withdraw {
		verb = "withdrawn from"
	}
	return finance.Notice{
		Title: "Transaction Approved!",
		Message: fmt.Sprintf("%s has been %s your Bensave account via %s. Thank you for approving the transaction on your device.",
			finance.FormatCedi(req.Amount), verb, req.Provider.ShortName()),
	}
}
