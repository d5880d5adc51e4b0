package projection

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// pcaProject projects the input vectors onto their top principal components
// via thin SVD of the mean-centered data matrix. When the data has fewer
// than ncomp usable components the remaining axes are left at zero.
func pcaProject(vectors [][]float32, ncomp int) ([][3]float64, error) {
	n := len(vectors)
	dim := len(vectors[0])

	data := make([]float64, n*dim)
	for i, v := range vectors {
		for j, val := range v {
			data[i*dim+j] = float64(val)
		}
	}
	x := mat.NewDense(n, dim, data)

	// Mean-center each column.
	col := make([]float64, n)
	for j := 0; j < dim; j++ {
		mat.Col(col, j, x)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			x.Set(i, j, x.At(i, j)-mean)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, errors.New("svd factorization failed")
	}

	var v mat.Dense
	svd.VTo(&v)

	// Columns of V are the principal component directions.
	_, vc := v.Dims()
	keep := ncomp
	if vc < keep {
		keep = vc
	}

	pc := mat.NewDense(dim, keep, nil)
	for i := 0; i < dim; i++ {
		for j := 0; j < keep; j++ {
			pc.Set(i, j, v.At(i, j))
		}
	}

	var projected mat.Dense
	projected.Mul(x, pc)

	coords := make([][3]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < keep; j++ {
			coords[i][j] = projected.At(i, j)
		}
	}
	return coords, nil
}
