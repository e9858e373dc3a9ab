// Command phvctl inspects PHV allocation constraints of a program.
package main

func main() {
	execute()
}
