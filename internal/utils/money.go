package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// CommissionSplit recomputes the commission breakdown server-side from the
// authoritative total. The company share is rounded down; the remainder is
// the platform fee, so the two always sum to the total.
func CommissionSplit(total int64, commissionPercent int) (companyShare, platformFee int64) {
	if total <= 0 || commissionPercent <= 0 {
		return total, 0
	}
	if commissionPercent >= 100 {
		return 0, total
	}
	platformFee = total * int64(commissionPercent) / 100
	companyShare = total - platformFee
	return companyShare, platformFee
}

// FormatRupiah renders an integer amount with thousand separators.
func FormatRupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%sRp%s", sign, formatThousand(amount))
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte('.')
		}
		out.WriteRune(c)
	}
	return out.String()
}
