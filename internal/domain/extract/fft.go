package extract

import (
	"math"
	"math/cmplx"
)

// fft computes the discrete Fourier transform of a real signal with the
// recursive radix-2 Cooley-Tukey scheme. Inputs whose length is not a
// power of two are zero padded; callers keep the original length for
// normalization.
func fft(input []float64) []complex128 {
	n := nextPow2(len(input))
	buf := make([]complex128, n)
	for i, v := range input {
		buf[i] = complex(v, 0)
	}
	return recursiveFFT(buf)
}

func recursiveFFT(x []complex128) []complex128 {
	n := len(x)
	if n <= 1 {
		return x
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = x[2*i]
		odd[i] = x[2*i+1]
	}

	even = recursiveFFT(even)
	odd = recursiveFFT(odd)

	out := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		t := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		out[k] = even[k] + t*odd[k]
		out[k+n/2] = even[k] - t*odd[k]
	}
	return out
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// meanPSD reduces a signal to the mean of its power spectral density,
// |X_k|^2 / N averaged across the spectrum, with N the unpadded length.
func meanPSD(signal []float64) float64 {
	n := len(signal)
	if n == 0 {
		return 0
	}
	spectrum := fft(signal)
	sum := 0.0
	for _, c := range spectrum {
		re, im := real(c), imag(c)
		sum += (re*re + im*im) / float64(n)
	}
	return sum / float64(len(spectrum))
}
