// Package config assembles the configuration context shared by every command.
//
// Configuration comes from an ordered list of directories. Each directory may
// hold a pubkeys/ folder, whose files are appended to the authorized keys
// installed on new nodes, and a provision.yaml file declaring defaults, image
// aliases, substitution variables and bundles. Later directories override
// earlier ones and every override is logged. The resulting [Context] is built
// once at startup and passed explicitly to the components that need it.
package config
