/*
Package dump provides I/O operations for collected states of the NodeList
contract.

A dump is a snapshot of all epochs known to the contract at some block along
with the details of nodes registered in them. Dumps allow to inspect the
network history offline and to compare states of different environments.

The package works with dumps stored in the file system using human-readable
encoding.
*/
package dump
