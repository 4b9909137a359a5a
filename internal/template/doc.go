// Package template renders bundle scripts before they are uploaded to a node.
//
// A script opts into variable substitution with a marker comment:
//
//	# provision-template-type: format-string
//
// Two dialects exist. format-string replaces {name} placeholders and fails
// on any variable missing from the map ({{ and }} are literal braces).
// template-string replaces $name and ${name} when the variable is known and
// leaves everything else alone, which keeps ordinary shell syntax such as
// $?, $1 or $(cmd) intact; $$ is the escape for a literal dollar sign.
// Scripts without a marker are returned unchanged.
//
// The first line carrying a marker decides the dialect. When one line holds
// several markers the last one on that line wins.
package template
