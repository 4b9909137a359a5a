// Package keygen generates SSH key pairs.
//
// Private keys are PEM encoded and public keys use the OpenSSH
// authorized_keys format, so a pair can be dropped into a configuration
// directory's pubkeys/ folder and ssh.key_path.
package keygen
