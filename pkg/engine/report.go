package engine

import "strconv"

// Report framing: "<distance>:<elapsed>#" followed by the line terminator.
const (
	Separator  = ':'
	EndMark    = '#'
	Terminator = "\r\n"
)

// Start commands.
const (
	CmdStart      = 'S'
	CmdStartLower = 's'
)

// maxReportLen fits "65535:4294967295#\r\n".
const maxReportLen = 5 + 1 + 10 + 1 + len(Terminator)

// AppendReport appends one report line to dst.
func AppendReport(dst []byte, distance uint16, elapsed uint32) []byte {
	dst = strconv.AppendUint(dst, uint64(distance), 10)
	dst = append(dst, Separator)
	dst = strconv.AppendUint(dst, uint64(elapsed), 10)
	dst = append(dst, EndMark)
	return append(dst, Terminator...)
}
