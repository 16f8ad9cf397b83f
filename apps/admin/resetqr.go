package main

import (
	"context"
)

// resetQR rotates the student's identity token; the previous QR badge
// stops resolving immediately.
func (cli *commandLine) resetQR(studentID string) error {
	stu, err := cli.studentSvc.ResetQR(context.Background(), studentID)
	if err != nil {
		return err
	}
	logger.Printf("QR token rotated for %s (%s)", stu.Name, stu.ID)
	return nil
}
