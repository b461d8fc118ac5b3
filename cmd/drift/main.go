// Command drift runs the ambient focus screen: a floating clock, a work and
// break timer, a task list, and Spotify playback on one full-screen page.
package main

func main() {
	Execute()
}
