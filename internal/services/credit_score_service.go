package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
	"github.com/zamfin/loanpilot-api/pkg/logger"
)

// CreditScoreService maintains borrower credit scores from repayment
// history and runs AI risk assessment on pending loan applications.
type CreditScoreService struct {
	borrowerRepo  repository.BorrowerRepository
	loanRepo      repository.LoanRepository
	repaymentRepo repository.RepaymentRepository
	scheduleSvc   *ScheduleService
	scoringURL    string
	httpClient    *http.Client
}

func NewCreditScoreService(
	borrowerRepo repository.BorrowerRepository,
	loanRepo repository.LoanRepository,
	repaymentRepo repository.RepaymentRepository,
	scheduleSvc *ScheduleService,
	scoringURL string,
) *CreditScoreService {
	return &CreditScoreService{
		borrowerRepo:  borrowerRepo,
		loanRepo:      loanRepo,
		repaymentRepo: repaymentRepo,
		scheduleSvc:   scheduleSvc,
		scoringURL:    scoringURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// UpdateScore recalculates and stores the credit score for one borrower
func (s *CreditScoreService) UpdateScore(ctx context.Context, borrowerID uint) error {
	borrower, err := s.borrowerRepo.FindByID(ctx, borrowerID)
	if err != nil {
		return fmt.Errorf("failed to find borrower: %w", err)
	}

	score := s.calculateCreditScore(ctx, borrowerID)

	if err := s.borrowerRepo.UpdateCreditScore(ctx, borrowerID, score); err != nil {
		return fmt.Errorf("failed to update credit score: %w", err)
	}

	logger.Info(fmt.Sprintf("[CreditScoreService] Updated credit score for borrower %d (%s): %d", borrowerID, borrower.FullName, score))
	return nil
}

// UpdateAllScores recalculates credit scores for every borrower in batches
func (s *CreditScoreService) UpdateAllScores(ctx context.Context) error {
	logger.Info("[CreditScoreService] Updating all borrower credit scores...")

	page := 1
	pageSize := 100
	totalProcessed := 0

	for {
		query := repository.NewListQuery()
		query.Page = page
		query.PerPage = pageSize

		borrowers, total, err := s.borrowerRepo.List(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to fetch borrowers page %d: %w", page, err)
		}

		if len(borrowers) == 0 {
			break
		}

		for _, borrower := range borrowers {
			if err := s.UpdateScore(ctx, borrower.ID); err != nil {
				logger.Error(fmt.Sprintf("[CreditScoreService] Error updating score for borrower %d: %v", borrower.ID, err))
				continue
			}
			totalProcessed++
		}

		if int64(totalProcessed) >= total || len(borrowers) < pageSize {
			break
		}

		page++
	}

	logger.Info(fmt.Sprintf("[CreditScoreService] Updated credit scores for %d borrowers", totalProcessed))
	return nil
}

// calculateCreditScore scores repayment timeliness across the borrower's loans
func (s *CreditScoreService) calculateCreditScore(ctx context.Context, borrowerID uint) int {
	baseScore := 500

	loans, err := s.loanRepo.FindByBorrower(ctx, borrowerID)
	if err != nil {
		return baseScore
	}

	now := time.Now()
	for i := range loans {
		loan := &loans[i]
		if loan.ReleaseDate == nil {
			continue
		}

		repayments, err := s.repaymentRepo.FindByLoan(ctx, loan.ID)
		if err != nil {
			continue
		}

		sched, err := s.scheduleSvc.ComputeForLoan(loan, now)
		if err != nil {
			continue
		}

		// Repayments are ordered by paid_at; pair each with the
		// installment it settled.
		for j, repayment := range repayments {
			if j >= len(sched.Installments) {
				break
			}
			dueDate := sched.Installments[j].PaymentDate
			daysLate := int(repayment.PaidAt.Sub(dueDate).Hours() / 24)

			if daysLate <= 0 {
				// On-time payment: +5 points
				baseScore += 5
			} else if daysLate <= 7 {
				baseScore -= 2
			} else if daysLate <= 30 {
				baseScore -= 5
			} else {
				baseScore -= 10
			}
		}

		if loan.Status == models.LoanStatusDefaulted {
			baseScore -= 100
		}

		// Bonus for fully repaid loans
		if loan.Status == models.LoanStatusClosed {
			baseScore += 50
		}
	}

	if baseScore < 300 {
		baseScore = 300
	}
	if baseScore > 850 {
		baseScore = 850
	}

	return baseScore
}

func monthlyIncome(b *models.Borrower) float64 {
	if b.MonthlyIncome == nil {
		return 0
	}
	return *b.MonthlyIncome
}

// scoringRequest is the payload sent to the external risk scoring service
type scoringRequest struct {
	LoanNumber      string  `json:"loan_number"`
	PrincipalAmount float64 `json:"principal_amount"`
	InterestRate    float64 `json:"interest_rate"`
	Duration        int     `json:"duration"`
	DurationUnit    string  `json:"duration_unit"`
	MonthlyIncome   float64 `json:"monthly_income"`
	CreditScore     int     `json:"credit_score"`
	ActiveLoans     int     `json:"active_loans"`
}

type scoringResponse struct {
	CreditScore        int      `json:"credit_score"`
	DefaultProbability float64  `json:"default_probability"`
	RiskFactors        []string `json:"risk_factors"`
	Recommendation     string   `json:"recommendation"`
	Reason             string   `json:"reason"`
}

// ScorePendingLoans runs risk assessment for processing loans that have
// not been scored yet. Intended to run on a schedule.
func (s *CreditScoreService) ScorePendingLoans(ctx context.Context) error {
	loans, err := s.loanRepo.FindUnscored(ctx, 50)
	if err != nil {
		return fmt.Errorf("find unscored loans: %w", err)
	}

	scored := 0
	for i := range loans {
		if err := s.AssessLoan(ctx, &loans[i]); err != nil {
			logger.Error(fmt.Sprintf("[CreditScoreService] Failed to assess loan %s: %v", loans[i].LoanNumber, err))
			continue
		}
		scored++
	}

	if len(loans) > 0 {
		logger.Info(fmt.Sprintf("[CreditScoreService] Assessed %d of %d pending loan(s)", scored, len(loans)))
	}
	return nil
}

// AssessLoan scores a single loan application and stores the result.
// When an external scoring service is configured it is consulted first;
// otherwise a local heuristic produces the assessment.
func (s *CreditScoreService) AssessLoan(ctx context.Context, loan *models.Loan) error {
	borrower, err := s.borrowerRepo.FindByIDWithLoans(ctx, loan.BorrowerID)
	if err != nil {
		return fmt.Errorf("failed to find borrower: %w", err)
	}

	var result *scoringResponse
	if s.scoringURL != "" {
		result, err = s.callScoringService(ctx, loan, borrower)
		if err != nil {
			logger.Warn(fmt.Sprintf("[CreditScoreService] Scoring service unavailable, using local heuristic: %v", err))
		}
	}
	if result == nil {
		result = s.localAssessment(loan, borrower)
	}

	factors, err := json.Marshal(result.RiskFactors)
	if err != nil {
		return err
	}
	factorsJSON := string(factors)

	now := time.Now()
	loan.AICreditScore = &result.CreditScore
	loan.DefaultProbability = &result.DefaultProbability
	loan.RiskFactors = &factorsJSON
	loan.AIRecommendation = &result.Recommendation
	loan.AIDecisionReason = &result.Reason
	loan.AIScoredAt = &now

	return s.loanRepo.Update(ctx, loan)
}

func (s *CreditScoreService) callScoringService(ctx context.Context, loan *models.Loan, borrower *models.Borrower) (*scoringResponse, error) {
	payload := scoringRequest{
		LoanNumber:      loan.LoanNumber,
		PrincipalAmount: loan.PrincipalAmount,
		InterestRate:    loan.InterestRate,
		Duration:        loan.Duration,
		DurationUnit:    loan.DurationUnit,
		MonthlyIncome:   monthlyIncome(borrower),
		CreditScore:     borrower.CreditScore,
		ActiveLoans:     borrower.ActiveLoanCount(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.scoringURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scoring service returned %d", resp.StatusCode)
	}

	var result scoringResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// localAssessment is the fallback heuristic when no scoring service is
// configured. It weighs the borrower's history and debt load.
func (s *CreditScoreService) localAssessment(loan *models.Loan, borrower *models.Borrower) *scoringResponse {
	score := borrower.CreditScore
	if score == 0 {
		score = 500
	}

	var factors []string

	income := monthlyIncome(borrower)
	installment := loan.TotalRepayable() / float64(loan.Duration)
	if income > 0 && loan.DurationUnit == models.DurationUnitMonth {
		ratio := installment / income
		if ratio > 0.5 {
			score -= 80
			factors = append(factors, "installment exceeds half of monthly income")
		} else if ratio > 0.3 {
			score -= 30
			factors = append(factors, "installment above a third of monthly income")
		}
	} else if income == 0 {
		score -= 50
		factors = append(factors, "no declared income")
	}

	if active := borrower.ActiveLoanCount(); active > 0 {
		score -= 25 * active
		factors = append(factors, fmt.Sprintf("%d active loan(s) already outstanding", active))
	}

	if score < 300 {
		score = 300
	}
	if score > 850 {
		score = 850
	}

	// Map score to a rough default probability
	probability := float64(850-score) / 850.0

	recommendation := models.AIRecommendReview
	reason := "borderline score, manual review advised"
	if score >= 650 && len(factors) == 0 {
		recommendation = models.AIRecommendApprove
		reason = "strong repayment history and affordable installment"
	} else if score < 450 {
		recommendation = models.AIRecommendReject
		reason = "high risk of default"
	}

	return &scoringResponse{
		CreditScore:        score,
		DefaultProbability: probability,
		RiskFactors:        factors,
		Recommendation:     recommendation,
		Reason:             reason,
	}
}
