package main

import "scrapechat/cmd"

func main() {
	cmd.Execute()
}
