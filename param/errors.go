package param

import "github.com/CK6170/vnacal-go/vnaerr"

func errUsage(format string, args ...interface{}) error {
	return vnaerr.Usagef(format, args...)
}

func errMath(format string, args ...interface{}) error {
	return vnaerr.Mathf(format, args...)
}
