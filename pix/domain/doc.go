// Package domain define os tipos e contratos do ciclo de vida de um Pix.
//
// Este pacote não depende de net/http nem de implementações concretas
// (banco, Redis, Kafka). A intenção é permitir testes de unidade puros e
// desacoplar as regras de negócio dos detalhes de infraestrutura.
//
// Estados:
//
//	generated -> paid
//	generated -> expired
//
// paid e expired são terminais: nenhuma transição sai deles.
package domain
