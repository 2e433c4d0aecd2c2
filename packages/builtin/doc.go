// Package builtin provides the functions callable from scenario files.
//
// Available functions:
//   - now([layout]): Current time, RFC 3339 unless a Go layout is given
//   - date([layout], [offsetDays]): Today's date, e.g. date("02.01.2006", -30)
//   - timestamp(), timestampMs(): Current Unix time
//   - uuid(): Random UUID v4
//   - random(min, max): Random integer in range
//   - randomString(length), randomDigits(length): Random text for search inputs
//   - env(name, [default]): Environment variable value
//
// Functions are invoked using the {{name(args)}} syntax.
package builtin
