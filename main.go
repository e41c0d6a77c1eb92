package main

import "github.com/jameskipngetich/paymentService/cmd"

func main() {
	cmd.Execute()
}
