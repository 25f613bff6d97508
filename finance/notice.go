package finance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Notice is a user-facing notification: a short title and a message.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NoticeFor turns an error from this package into the message shown to the
// user. Unknown errors get a generic notice.
func NoticeFor(err error) Notice {
	var (
		over    *BudgetExceededError
		short   *InsufficientBalanceError
		gate    *ConfirmationRequiredError
		missing *RateUnavailableError
	)
	switch {
	case err == nil:
		return Notice{}
	case errors.As(err, &over):
		return Notice{"Budget Exceeded!", fmt.Sprintf(
			"This expense will exceed your weekly budget by %s. Transaction cancelled to protect your savings goal.",
			FormatCedi(over.Over))}
	case errors.As(err, &short):
		return Notice{"Insufficient Balance", fmt.Sprintf(
			"You cannot withdraw %s. Your current balance is %s.",
			FormatCedi(short.Requested), FormatCedi(short.Available))}
	case errors.As(err, &gate):
		return Notice{"Confirm Expense", fmt.Sprintf(
			"Warning: This expense will leave you with only %s remaining for the week. Continue?",
			FormatCedi(gate.Remaining))}
	case errors.As(err, &missing):
		return Notice{"Conversion Error", "Exchange rate not available for this currency. Please try a different currency."}
	case errors.Is(err, ErrInvalidAmount):
		return Notice{"Invalid Amount", "Please enter a valid amount."}
	case errors.Is(err, ErrMissingDescription):
		return Notice{"Description Required", "Please describe what you bought."}
	case errors.Is(err, ErrNoBudgetSet):
		return Notice{"No Budget Set", "Please set a weekly budget first."}
	case errors.Is(err, ErrMissingDeadline):
		return Notice{"Deadline Required", "Please set a target date for your savings goal."}
	case errors.Is(err, ErrPastDeadline):
		return Notice{"Invalid Date", "Please choose a future date for your savings goal."}
	case errors.Is(err, ErrInvalidPhoneNumber):
		return Notice{"Invalid Phone Number", "Please enter a valid Ghanaian phone number (0xxxxxxxxx)."}
	case errors.Is(err, ErrInvalidProvider):
		return Notice{"Invalid Provider", "Please choose MTN, Telecel or AirtelTigo."}
	case errors.Is(err, ErrInvalidTransferKind):
		return Notice{"Invalid Transaction", "Please choose deposit or withdraw."}
	case errors.Is(err, ErrInvalidCurrency):
		return Notice{"Invalid Currency", "Please choose a three-letter currency code."}
	case errors.Is(err, ErrNoPendingConversion):
		return Notice{"Nothing To Add", "Convert an amount first."}
	case errors.Is(err, ErrExpenseDeclined):
		return Notice{"Expense Cancelled", "The expense was not recorded."}
	case errors.Is(err, ErrTransferNotFound):
		return Notice{"Unknown Transaction", "No mobile money transaction with that reference."}
	case errors.Is(err, ErrPersistenceDegraded):
		return Notice{"Data Restored", "Some saved data could not be read and was reset."}
	default:
		return Notice{"Something Went Wrong", "Please try again."}
	}
}

// =============================================================================
// SUCCESS NOTICES
// =============================================================================

func BudgetSetNotice(amount decimal.Decimal) Notice {
	return Notice{"Budget Set!", fmt.Sprintf("Your weekly budget of %s has been set successfully!", FormatCedi(amount))}
}

func ExpenseAddedNotice(r ExpenseResult) Notice {
	return Notice{"Expense Added", fmt.Sprintf("%s spent on %q.", FormatCedi(r.Applied), r.Description)}
}

func NewWeekNotice() Notice {
	return Notice{"New Week!", "Your weekly budget has been reset. Time for a fresh start!"}
}

func GoalSetNotice(goal decimal.Decimal) Notice {
	return Notice{"Savings Goal Set!", fmt.Sprintf("Your savings goal of %s has been set successfully!", FormatCedi(goal))}
}
