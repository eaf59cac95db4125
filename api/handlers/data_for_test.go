package handlers

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

var testFiles = map[string]string{
	"123456_contract.txt":             "contract for account 123456 signed by John Smith",
	"statements/789012_statement.csv": "account,balance\n789012,10.00\n",
	"statements/photo.png":            "not-a-real-image",
	"archive/old_contract.txt":        "archived contract for account 123456",
	"notes/meeting.txt":               "planning meeting with Jane Doe",
}
