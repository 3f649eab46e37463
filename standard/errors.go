package standard

import "github.com/CK6170/vnacal-go/vnaerr"

func errUsage(format string, args ...interface{}) error {
	return vnaerr.Usagef(format, args...)
}
