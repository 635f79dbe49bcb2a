package expiry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Policy decides card validity: the time zone expiry dates are evaluated in
// and how many years a card product is valid.
type Policy struct {
	Location     *time.Location
	ProductYears map[string]int
}

func DefaultPolicy() Policy {
	return Policy{
		Location:     time.UTC,
		ProductYears: map[string]int{"credit": 3, "debit": 5},
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Years returns validity years for a product, 5 when the product is unknown.
func (p Policy) Years(product string) int {
	if y, ok := p.ProductYears[strings.ToLower(product)]; ok && y > 0 {
		return y
	}
	return 5
}

// IssueYYMM returns the YYMM expiry of a card of product issued at issue.
func (p Policy) IssueYYMM(issue time.Time, product string) string {
	t := issue.In(p.location())
	return fmt.Sprintf("%02d%02d", (t.Year()+p.Years(product))%100, int(t.Month()))
}

// IsExpired reports whether at is strictly after the last instant of the YYMM month.
func (p Policy) IsExpired(yymm string, at time.Time) (bool, error) {
	end, err := EndOfMonth(yymm, p.location())
	if err != nil {
		return false, err
	}
	return at.In(end.Location()).After(end), nil
}

// EndOfMonth parses YYMM into the last instant of that month in loc.
func EndOfMonth(yymm string, loc *time.Location) (time.Time, error) {
	if err := ValidateYYMM(yymm); err != nil {
		return time.Time{}, err
	}
	yy, _ := strconv.Atoi(yymm[:2])
	mm, _ := strconv.Atoi(yymm[2:])
	firstNext := time.Date(2000+yy, time.Month(mm), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond), nil
}

// ValidateYYMM checks the format is four digits with month 01..12.
func ValidateYYMM(yymm string) error {
	if len(yymm) != 4 {
		return fmt.Errorf("expiry must be YYMM (4 digits)")
	}
	for i := 0; i < 4; i++ {
		if yymm[i] < '0' || yymm[i] > '9' {
			return fmt.Errorf("expiry must be digits: YYMM")
		}
	}
	mm := int(yymm[2]-'0')*10 + int(yymm[3]-'0')
	if mm < 1 || mm > 12 {
		return fmt.Errorf("expiry month must be 01..12")
	}
	return nil
}
