package gateway

import (
	"fmt"
	"regexp"
	"strconv"
)

// Prefixos das referências externas de ordem, no formato <prefixo>_<id>.
const (
	RefBet        = "bet"
	RefRecharge   = "recharge"
	RefWithdrawal = "withdrawal"
	RefRollback   = "rollback"
	RefIncome     = "income"
)

var orderRefPattern = regexp.MustCompile(`^([a-z]+)_([0-9]+)$`)

// OrderRef monta a referência externa de uma ordem local.
func OrderRef(prefix string, id int64) string {
	return fmt.Sprintf("%s_%d", prefix, id)
}

// ParseOrderRef desmonta uma referência externa vinda do gateway.
func ParseOrderRef(ref string) (prefix string, id int64, ok bool) {
	m := orderRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", 0, false
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return m[1], id, true
}
