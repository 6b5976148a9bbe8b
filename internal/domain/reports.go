package domain

import "time"

// DuplicateType classifies what a duplicate candidate most likely is,
// inferred from transaction names. Best effort: the label carries no
// confidence of its own.
type DuplicateType string

const (
	DuplicateCreditCardPayment DuplicateType = "credit_card_payment"
	DuplicateRent              DuplicateType = "rent"
	DuplicateInvestment        DuplicateType = "investment"
	DuplicateLoan              DuplicateType = "loan"
	DuplicateTransfer          DuplicateType = "transfer"
	DuplicateManual            DuplicateType = "manual"
)

// CardGroup is the aggregated credit-card side of a card-repayment
// duplicate candidate: all card charges of one (month, vendor, account).
type CardGroup struct {
	Month         string        `json:"month"`
	Vendor        string        `json:"vendor"`
	AccountNumber string        `json:"accountNumber,omitempty"`
	Total         float64       `json:"total"`
	Transactions  []Transaction `json:"transactions"`
}

// DuplicateCandidate is a proposed duplicate. Candidates are ephemeral:
// recomputed on every run, persisted (once confirmed) by the caller.
type DuplicateCandidate struct {
	Type             DuplicateType `json:"type"`
	Confidence       float64       `json:"confidence"`
	Transactions     []Transaction `json:"transactions"`
	CardGroup        *CardGroup    `json:"cardGroup,omitempty"`
	AmountDifference float64       `json:"amountDifference"`
	DaysApart        int           `json:"daysApart,omitempty"`
	VendorNameMatch  bool          `json:"vendorNameMatch,omitempty"`
	Description      string        `json:"description"`
}

// Key identifies the candidate for exclusion against a caller-supplied
// confirmed-duplicates set. Pair candidates use the order-independent
// PairKey; card-repayment candidates combine the bank debit with the
// card group it was matched against.
func (c DuplicateCandidate) Key() string {
	if c.CardGroup != nil && len(c.Transactions) == 1 {
		return "cc:" + c.Transactions[0].Key() + "::" + c.CardGroup.Month + "|" + c.CardGroup.Vendor + "|" + c.CardGroup.AccountNumber
	}
	if len(c.Transactions) == 2 {
		return PairKey(c.Transactions[0], c.Transactions[1])
	}
	return ""
}

// Severity grades how far an anomaly deviates from the baseline.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AnomalyType names the sub-detector that produced an anomaly.
type AnomalyType string

const (
	AnomalyUnusualAmount    AnomalyType = "unusual_amount"
	AnomalyCategorySpike    AnomalyType = "category_spike"
	AnomalyMissingRecurring AnomalyType = "missing_recurring"
)

// AnomalyCandidate is a single flagged irregularity. Only the fields
// relevant to its type are populated.
type AnomalyCandidate struct {
	Type                AnomalyType  `json:"type"`
	Severity            Severity     `json:"severity"`
	DeviationPercentage float64      `json:"deviationPercentage"`
	Transaction         *Transaction `json:"transaction,omitempty"`
	Category            string       `json:"category,omitempty"`
	Month               string       `json:"month,omitempty"`
	MonthTotal          float64      `json:"monthTotal,omitempty"`
	AverageMonthly      float64      `json:"averageMonthly,omitempty"`
	ZScore              float64      `json:"zScore,omitempty"`
	DaysOverdue         int          `json:"daysOverdue,omitempty"`
	MerchantPattern     string       `json:"merchantPattern,omitempty"`
	Description         string       `json:"description"`
}

// Frequency is a recurring-charge cadence bucket.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// RecurringStatus is the user's decision about a recurring charge,
// owned by an external collaborator and only read here.
type RecurringStatus string

const (
	StatusActive    RecurringStatus = "active"
	StatusCancelled RecurringStatus = "cancelled"
	StatusEssential RecurringStatus = "essential"
)

// RecurringRecord is a persisted recurring-payment row supplied by the
// caller, used to detect overdue payments.
type RecurringRecord struct {
	MerchantPattern  string          `json:"merchantPattern"`
	Frequency        Frequency       `json:"frequency"`
	AverageAmount    float64         `json:"averageAmount"`
	NextExpectedDate time.Time       `json:"nextExpectedDate"`
	Status           RecurringStatus `json:"status"`
}

// SuggestionType names a deterministic optimization derived from a
// recurring pattern.
type SuggestionType string

const (
	SuggestionAnnualPlan       SuggestionType = "annual_plan"
	SuggestionReviewLowValue   SuggestionType = "review_low_value"
	SuggestionCompareProviders SuggestionType = "compare_providers"
	SuggestionNegotiate        SuggestionType = "negotiate"
)

// Suggestion is a pure function of the pattern it is attached to.
type Suggestion struct {
	Type             SuggestionType `json:"type"`
	Action           string         `json:"action"`
	PotentialSavings float64        `json:"potentialSavings"`
}

// RecurringPattern is a detected recurring charge for one normalized
// merchant.
type RecurringPattern struct {
	MerchantPattern   string          `json:"merchantPattern"`
	Frequency         Frequency       `json:"frequency"`
	AverageAmount     float64         `json:"averageAmount"`
	Confidence        float64         `json:"confidence"`
	MonthlyEquivalent float64         `json:"monthlyEquivalent"`
	IsSubscription    bool            `json:"isSubscription"`
	NextExpectedDate  time.Time       `json:"nextExpectedDate"`
	Occurrences       int             `json:"occurrences"`
	Category          string          `json:"category,omitempty"`
	UserStatus        RecurringStatus `json:"userStatus,omitempty"`
	Suggestions       []Suggestion    `json:"suggestions,omitempty"`
}

// AnalysisReport is the top-level structure for one detection run.
type AnalysisReport struct {
	RunID                 string               `json:"runId"`
	WindowStart           string               `json:"windowStart"`
	WindowEnd             string               `json:"windowEnd"`
	TransactionsProcessed int                  `json:"transactionsProcessed"`
	Duplicates            []DuplicateCandidate `json:"duplicates"`
	Anomalies             []AnomalyCandidate   `json:"anomalies"`
	Recurring             []RecurringPattern   `json:"recurring"`
	SkippedGroups         []string             `json:"skippedGroups,omitempty"`
}
