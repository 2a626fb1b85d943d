package exposure

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// polyFit is a least squares polynomial fitted on mean/std normalised data.
type polyFit struct {
	coef   []float64
	xShift float64
	xScale float64
	yShift float64
	yScale float64
}

// fitPolynomial regresses y on 1, x, ..., x^order.
func fitPolynomial(x, y []float64, order int) (*polyFit, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d regressors for %d observations", ErrInvalidInput, len(x), len(y))
	}
	n, p := len(x), order+1
	if n <= p {
		return nil, fmt.Errorf("%w: %d points for %d basis functions", ErrInvalidInput, n, p)
	}

	f := &polyFit{}
	f.xShift, f.xScale = normalisation(x)
	f.yShift, f.yScale = normalisation(y)

	design := mat.NewDense(n, p, nil)
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		xi := (x[i] - f.xShift) / f.xScale
		v := 1.0
		for j := 0; j < p; j++ {
			design.Set(i, j, v)
			v *= xi
		}
		rhs.SetVec(i, (y[i]-f.yShift)/f.yScale)
	}

	// drop the highest power until the design has full column rank
	for ; p > 0; p-- {
		var beta mat.VecDense
		err := beta.SolveVec(design.Slice(0, n, 0, p), rhs)
		var cond mat.Condition
		if errors.As(err, &cond) && p > 1 {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("least squares: %w", err)
		}
		f.coef = make([]float64, p)
		for j := 0; j < p; j++ {
			f.coef[j] = beta.AtVec(j)
		}
		break
	}
	return f, nil
}

func normalisation(v []float64) (shift, scale float64) {
	mean, std := stat.MeanStdDev(v, nil)
	if std == 0 || math.IsNaN(std) {
		return mean, 1
	}
	return mean, std
}

func (f *polyFit) eval(x float64) float64 {
	xi := (x - f.xShift) / f.xScale
	sum, v := 0.0, 1.0
	for _, c := range f.coef {
		sum += c * v
		v *= xi
	}
	return f.yShift + f.yScale*sum
}
