package odds

import (
	"fmt"

	"github.com/shopspring/decimal"

	"wager-platform/internal/shared/apperr"
)

// Bases de mercado suportadas.
const (
	BaseHandicap = "ah"  // handicap asiático
	BaseSum      = "sum" // total de gols (over/under)
	BaseWin      = "win" // 1x2
)

// Lados apostáveis.
const (
	TypeAH1   = "ah1"
	TypeAH2   = "ah2"
	TypeWin1  = "win1"
	TypeWin2  = "win2"
	TypeDraw  = "draw"
	TypeOver  = "over"
	TypeUnder = "under"
)

// Outcome classifica o desfecho de uma aposta liquidada.
// Escala persistida em bet_orders.result; NULL significa não liquidada.
type Outcome int8

const (
	FullLoss Outcome = -2
	HalfLoss Outcome = -1
	Push     Outcome = 0
	HalfWin  Outcome = 1
	FullWin  Outcome = 2
)

func (o Outcome) String() string {
	switch o {
	case FullWin:
		return "win"
	case HalfWin:
		return "half_win"
	case HalfLoss:
		return "half_loss"
	case FullLoss:
		return "loss"
	default:
		return "push"
	}
}

var (
	half    = decimal.NewFromFloat(0.5)
	quarter = decimal.NewFromFloat(0.25)
	two     = decimal.NewFromInt(2)
	one     = decimal.NewFromInt(1)
)

// compareScore classifica a margem entre dois valores pelas linhas de quarto:
// margem ≥ 0.5 ganha tudo, [0.25, 0.5) ganha metade, (−0.5, −0.25] perde
// metade, ≤ −0.5 perde tudo, o resto devolve a stake.
func compareScore(score1, score2 decimal.Decimal) Outcome {
	delta := score1.Sub(score2)
	switch {
	case delta.IsZero():
		return Push
	case delta.GreaterThanOrEqual(half):
		return FullWin
	case delta.GreaterThanOrEqual(quarter):
		return HalfWin
	case delta.LessThanOrEqual(half.Neg()):
		return FullLoss
	case delta.LessThanOrEqual(quarter.Neg()):
		return HalfLoss
	default:
		return Push
	}
}

// Evaluate calcula o desfecho de uma aposta a partir do placar final.
// Função pura; o lado já foi validado contra o mercado no momento da aposta.
func Evaluate(betType string, condition decimal.Decimal, score1, score2 int) Outcome {
	s1 := decimal.NewFromInt(int64(score1))
	s2 := decimal.NewFromInt(int64(score2))

	switch betType {
	case TypeAH1:
		return compareScore(s1.Add(condition), s2)
	case TypeAH2:
		return compareScore(s2.Add(condition), s1)
	case TypeWin1:
		if score1 > score2 {
			return FullWin
		}
		return FullLoss
	case TypeWin2:
		if score2 > score1 {
			return FullWin
		}
		return FullLoss
	case TypeDraw:
		if score1 == score2 {
			return FullWin
		}
		return FullLoss
	case TypeUnder:
		return compareScore(condition, s1.Add(s2))
	case TypeOver:
		return compareScore(s1.Add(s2), condition)
	default:
		return Push
	}
}

// Payout calcula o retorno em favor da conta. O floor trunca as frações de
// unidade a favor da casa e precisa ser reproduzido exatamente.
func Payout(out Outcome, stake int64, value decimal.Decimal) int64 {
	s := decimal.NewFromInt(stake)
	switch out {
	case FullWin:
		return s.Mul(value).Floor().IntPart()
	case HalfWin:
		return s.Mul(value.Add(one)).Div(two).Floor().IntPart()
	case HalfLoss:
		return s.Div(two).Floor().IntPart()
	case Push:
		return stake
	default:
		return 0
	}
}

// ValueFor resolve o multiplicador do lado pedido dentro do mercado do odd.
// Combinação desconhecida de lado e mercado é um erro de ação inválida.
func ValueFor(base, betType string, value0, value1, value2 decimal.Decimal) (decimal.Decimal, error) {
	switch base {
	case BaseHandicap:
		switch betType {
		case TypeAH1:
			return value1, nil
		case TypeAH2:
			return value2, nil
		}
	case BaseSum:
		switch betType {
		case TypeUnder:
			return value1, nil
		case TypeOver:
			return value2, nil
		}
	case BaseWin:
		switch betType {
		case TypeWin1:
			return value1, nil
		case TypeWin2:
			return value2, nil
		case TypeDraw:
			return value0, nil
		}
	}
	return decimal.Decimal{}, apperr.ErrInvalidAction
}

// ResultText monta o texto de exibição do resultado: mercados de total
// mostram a soma de gols, os demais o placar.
func ResultText(base string, score1, score2 int) string {
	if base == BaseSum {
		return fmt.Sprintf("%d", score1+score2)
	}
	return fmt.Sprintf("%d:%d", score1, score2)
}
