package asciicast

import "fmt"

func errVersion(got int) error {
	return fmt.Errorf("unsupported version %d, want 3", got)
}

var errDimensions = fmt.Errorf("header missing both term.cols/term.rows and width/height")
