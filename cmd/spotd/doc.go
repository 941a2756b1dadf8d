// Command spotd is the publishing pipeline daemon and its management CLI.
package main
