package main

import "github.com/Yates-Labs/beanstalk/cmd"

func main() {
	cmd.Execute()
}
