package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func assertCandidate(t *testing.T, c model.Candidate, wantDate time.Time, wantDesc, wantAmount string) {
	t.Helper()
	assert.True(t, wantDate.Equal(c.Date), "date: got %s want %s", c.Date, wantDate)
	assert.Equal(t, wantDesc, c.Description)
	assert.Equal(t, wantAmount, c.Amount.StringFixed(2))
}

func TestTDCommonParser_Scenario(t *testing.T) {
	p := &TDCommonParser{}
	report, err := p.Parse(context.Background(), strings.NewReader("05/17/2025,STARBUCKS #123,4.50,,995.50\n"), SourceTDCreditCard)
	require.NoError(t, err)
	require.Len(t, report.Candidates, 1)

	c := report.Candidates[0]
	assertCandidate(t, c, date(2025, time.May, 17), "STARBUCKS #123", "-4.50")
	assert.Equal(t, SourceTDCreditCard, c.AccountSource)
	assert.Empty(t, c.CategoryName)
}

func TestTDCommonParser_File(t *testing.T) {
	report, err := ParseFile(context.Background(), &TDCommonParser{}, "testdata/td-cb-may-accountactivity.csv", SourceTDCreditCard)
	require.NoError(t, err)

	require.Len(t, report.Candidates, 3)
	assertCandidate(t, report.Candidates[0], date(2025, time.May, 17), "STARBUCKS #123", "-4.50")
	assertCandidate(t, report.Candidates[1], date(2025, time.May, 18), "PAYROLL DEPOSIT", "2500.00")
	assertCandidate(t, report.Candidates[2], date(2025, time.May, 19), "PAYMENT - THANK YOU", "0.00")

	assert.Equal(t, 3, report.Skipped())
	assert.Equal(t, map[SkipReason]int{
		SkipEmptyDescription: 1,
		SkipBadDate:          1,
		SkipShortRow:         1,
	}, report.SkipCounts())
}

func TestTDCommonParser_ZeroAmountSkipped(t *testing.T) {
	input := "05/19/2025,INTEREST ADJUSTMENT,,,,100.00\n05/19/2025,Payment - Thank You,,,,100.00\n"
	report, err := (&TDCommonParser{}).Parse(context.Background(), strings.NewReader(input), SourceTDAccount)
	require.NoError(t, err)

	require.Len(t, report.Candidates, 1)
	assert.Equal(t, "Payment - Thank You", report.Candidates[0].Description)
	assert.Equal(t, map[SkipReason]int{SkipZeroAmount: 1}, report.SkipCounts())
}

func TestTDCommonParser_FourColumnLayout(t *testing.T) {
	input := "06/01/2025,E-TRANSFER,,150.00\n06/02/2025,GROCERY,42.10,\n06/03/2025,TOO SHORT,1.00\n"
	report, err := (&TDCommonParser{}).Parse(context.Background(), strings.NewReader(input), SourceTDAccountIN)
	require.NoError(t, err)

	require.Len(t, report.Candidates, 2)
	assertCandidate(t, report.Candidates[0], date(2025, time.June, 1), "E-TRANSFER", "150.00")
	assertCandidate(t, report.Candidates[1], date(2025, time.June, 2), "GROCERY", "-42.10")
	assert.Equal(t, map[SkipReason]int{SkipShortRow: 1}, report.SkipCounts())
}

func TestTDChequingParser(t *testing.T) {
	input := "2025-05-01,RENT,1500.00,\n2025-05-02,SALARY,,3000.00\n2025-05-03,COFFEE,3.25\n05/04/2025,WRONG FORMAT,1.00,\n"
	report, err := (&TDChequingParser{}).Parse(context.Background(), strings.NewReader(input), SourceTDChequing)
	require.NoError(t, err)

	require.Len(t, report.Candidates, 3)
	assertCandidate(t, report.Candidates[0], date(2025, time.May, 1), "RENT", "-1500.00")
	assertCandidate(t, report.Candidates[1], date(2025, time.May, 2), "SALARY", "3000.00")
	assertCandidate(t, report.Candidates[2], date(2025, time.May, 3), "COFFEE", "-3.25")
	assert.Equal(t, map[SkipReason]int{SkipBadDate: 1}, report.SkipCounts())
	assert.Equal(t, SourceTDChequing, report.Candidates[0].AccountSource)
}

func TestTDGenericParser(t *testing.T) {
	input := strings.Join([]string{
		"Date,Description,Debit,Credit,Balance",
		"2024-12-01,TEST GROCERY STORE,-25.50,,1000.00",
		"2024-12-02,SALARY DEPOSIT,,2000.00,3000.00",
		`"12/03/2024","'QUOTED SHOP'","10.00","",""`,
		"25/12/2024,BOXING DAY SALE,99.00,,",
		"2024-13-45,IMPOSSIBLE,1.00,,",
	}, "\n")

	report, err := (&TDGenericParser{}).Parse(context.Background(), strings.NewReader(input), SourceBankAccount)
	require.NoError(t, err)

	require.Len(t, report.Candidates, 4)
	assertCandidate(t, report.Candidates[0], date(2024, time.December, 1), "TEST GROCERY STORE", "-25.50")
	assertCandidate(t, report.Candidates[1], date(2024, time.December, 2), "SALARY DEPOSIT", "2000.00")
	assertCandidate(t, report.Candidates[2], date(2024, time.December, 3), "QUOTED SHOP", "-10.00")
	assertCandidate(t, report.Candidates[3], date(2024, time.December, 25), "BOXING DAY SALE", "-99.00")

	// The header has no numeric amount and the last row has no valid date.
	assert.Equal(t, map[SkipReason]int{SkipZeroAmount: 1, SkipBadDate: 1}, report.SkipCounts())
}

func TestAmexParser_Scenario(t *testing.T) {
	input := "Date,Description,Amount\n17 May 2025,NETFLIX.COM,15.99\n"
	report, err := (&AmexParser{}).Parse(context.Background(), strings.NewReader(input), SourceAmex)
	require.NoError(t, err)

	require.Len(t, report.Candidates, 1)
	assertCandidate(t, report.Candidates[0], date(2025, time.May, 17), "NETFLIX.COM", "-15.99")
	assert.Equal(t, SourceAmex, report.Candidates[0].AccountSource)
}

func TestAmexParser_File(t *testing.T) {
	report, err := ParseFile(context.Background(), &AmexParser{}, "testdata/amex-june.csv", SourceAmex)
	require.NoError(t, err)

	require.Len(t, report.Candidates, 3)
	assertCandidate(t, report.Candidates[0], date(2025, time.May, 17), "NETFLIX.COM", "-15.99")
	assertCandidate(t, report.Candidates[1], date(2025, time.June, 3), "AMAZON.CA", "-1204.10")
	assertCandidate(t, report.Candidates[2], date(2025, time.June, 4), "REFUND AMAZON.CA", "20.00")
	assert.Equal(t, map[SkipReason]int{SkipBadAmount: 1}, report.SkipCounts())
}

func TestAmexParser_MissingHeader(t *testing.T) {
	input := "Date,Merchant,Amount\n17 May 2025,NETFLIX.COM,15.99\n"
	report, err := (&AmexParser{}).Parse(context.Background(), strings.NewReader(input), SourceAmex)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingHeader)
	assert.Contains(t, err.Error(), "Description")
	assert.Nil(t, report)
}

func TestAmexParser_EmptyInputs(t *testing.T) {
	for name, input := range map[string]string{
		"empty":       "",
		"marker only": "Table 1\n",
	} {
		t.Run(name, func(t *testing.T) {
			report, err := (&AmexParser{}).Parse(context.Background(), strings.NewReader(input), SourceAmex)
			require.NoError(t, err)
			assert.Empty(t, report.Candidates)
		})
	}
}

func TestAmexParser_ShortRow(t *testing.T) {
	input := "Date,Description,Extra,Amount\n17 May 2025,NETFLIX.COM\n"
	report, err := (&AmexParser{}).Parse(context.Background(), strings.NewReader(input), SourceAmex)
	require.NoError(t, err)
	assert.Empty(t, report.Candidates)
	assert.Equal(t, map[SkipReason]int{SkipShortRow: 1}, report.SkipCounts())
}

func TestParseFile_Unreadable(t *testing.T) {
	_, err := ParseFile(context.Background(), &TDCommonParser{}, filepath.Join(t.TempDir(), "missing.csv"), SourceTDAccount)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnreadableFile)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&TDChequingParser{}).Parse(ctx, strings.NewReader("2025-05-01,RENT,1500.00,\n"), SourceTDChequing)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_OutcomesCarryLineNumbers(t *testing.T) {
	input := "2025-05-01,RENT,1500.00,\nbad,ROW,1.00,\n"
	report, err := (&TDChequingParser{}).Parse(context.Background(), strings.NewReader(input), SourceTDChequing)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, RowOutcome{Line: 1, Status: RowOK}, report.Outcomes[0])
	assert.Equal(t, 2, report.Outcomes[1].Line)
	assert.Equal(t, SkipBadDate, report.Outcomes[1].Reason)
}
