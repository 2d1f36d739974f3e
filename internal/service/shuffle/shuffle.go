// Package shuffle реализует детерминированную перестановку для персонализации выдачи.
// Одинаковые входные данные дают одинаковый порядок на любой машине.
package shuffle

import "math/rand/v2"

// Множитель полиномиального хэша.
const hashMultiplier = 31

// Seed сворачивает материал в 32-битное число полиномиальным хэшем.
// Порядок символов важен, каждый символ влияет на результат.
func Seed(material string) uint32 {
	var h uint32
	for _, r := range material {
		h = h*hashMultiplier + uint32(r)
	}
	return h
}

// Source: воспроизводимый поток чисел в [0,1).
// Число строится из старших 53 бит PCG-DXSM, без rand.Rand.
type Source struct {
	pcg *rand.PCG
}

// Stream возвращает поток для заданного seed.
func Stream(seed uint32) *Source {
	return &Source{pcg: rand.NewPCG(uint64(seed), 0)}
}

// Float64 возвращает следующее число в [0,1) с шагом 2^-53.
func (s *Source) Float64() float64 {
	return float64(s.pcg.Uint64()>>11) * 0x1p-53
}

// Permute возвращает перемешанную копию items. Вход не изменяется.
func Permute[T any](items []T, material string) []T {
	out := make([]T, len(items))
	copy(out, items)
	if len(out) < 2 {
		return out
	}

	rng := Stream(Seed(material))
	for i := len(out) - 1; i > 0; i-- {
		j := int(rng.Float64() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
