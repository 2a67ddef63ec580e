package async

import (
	"strings"
	"sync"
)

type Errors struct {
	E []error
}

var _ error = (*Errors)(nil)

func (e Errors) Wrapped() error {
	if len(e.E) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	var sb strings.Builder
	l := len(e.E)
	for i, err := range e.E {
		sb.WriteString(err.Error())
		if i < l-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}

// Map applies f to every element of src with at most concurrencyLimit calls in flight.
// Results keep the order of src. All errors are collected and returned together.
func Map[T any, D any](src []T, concurrencyLimit int, f func(T) (D, error)) ([]D, error) {
	if len(src) == 0 {
		return []D{}, nil
	}

	if concurrencyLimit <= 0 {
		concurrencyLimit = len(src)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    Errors
		limiter = make(chan struct{}, concurrencyLimit)
		results = make([]D, len(src))
	)

	wg.Add(len(src))
	for i, element := range src {
		limiter <- struct{}{}
		go func(i int, el T) {
			defer func() {
				<-limiter
				wg.Done()
			}()

			r, err := f(el)
			if err != nil {
				mu.Lock()
				errs.E = append(errs.E, err)
				mu.Unlock()
				return
			}
			results[i] = r
		}(i, element)
	}

	wg.Wait()

	return results, errs.Wrapped()
}
