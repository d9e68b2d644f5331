package ruleconvert

import "strings"

// ToTargetLine inserts group after the value of a canonical line.
// A third field is kept unless noResolveOnly is set and it is not "no-resolve".
func ToTargetLine(line, group string, noResolveOnly bool) string {
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return fields[0] + "," + group
	}
	out := fields[0] + "," + fields[1] + "," + group
	if len(fields) > 2 && (!noResolveOnly || fields[2] == "no-resolve") {
		out += "," + fields[2]
	}
	return out
}

func toQuanXLine(line, group string) string {
	if strings.HasPrefix(line, "IP-CIDR6") {
		line = "IP6-CIDR" + line[len("IP-CIDR6"):]
	}
	return ToTargetLine(line, group, true)
}
