/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package errors

import "fmt"

// Error extends the standard error with a numeric code and an optional
// parent, so a caller several layers up the stack can still branch on
// "was this a 403-shaped failure" without string matching.
type Error interface {
	error

	IsCode(code CodeError) bool
	GetCode() CodeError
	Unwrap() error
}

type codeErr struct {
	code   CodeError
	parent error
}

// New builds an Error for code, optionally wrapping a parent error.
func New(code CodeError, parent error) Error {
	return &codeErr{code: code, parent: parent}
}

func (e *codeErr) Error() string {
	msg := lookup(e.code)
	if e.parent != nil {
		return fmt.Sprintf("[%d] %s: %s", e.code, msg, e.parent.Error())
	}
	return fmt.Sprintf("[%d] %s", e.code, msg)
}

func (e *codeErr) IsCode(code CodeError) bool {
	return e.code == code
}

func (e *codeErr) GetCode() CodeError {
	return e.code
}

func (e *codeErr) Unwrap() error {
	return e.parent
}
