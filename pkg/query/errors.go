package query

import "fmt"

func errNotCompound(index int) error {
	return fmt.Errorf("element %d is not a compound value", index)
}
